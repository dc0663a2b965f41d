package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultABI covers the methods this client calls. It is used when the
// artifact carries no ABI of its own.
const DefaultABI = `[
  {"type":"function","name":"addLand","stateMutability":"nonpayable","outputs":[],
   "inputs":[
     {"name":"_area","type":"string"},
     {"name":"_city","type":"string"},
     {"name":"_state","type":"string"},
     {"name":"landPrice","type":"string"},
     {"name":"_propertyPID","type":"string"},
     {"name":"_surveyNum","type":"string"},
     {"name":"_document","type":"string"},
     {"name":"_image","type":"string"}]},
  {"type":"function","name":"isSeller","stateMutability":"view",
   "inputs":[{"name":"_id","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isBuyer","stateMutability":"view",
   "inputs":[{"name":"_id","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isLandInspector","stateMutability":"view",
   "inputs":[{"name":"_id","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Deployment is one entry of an artifact's networks map.
type Deployment struct {
	Address         string `json:"address"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// Artifact is a compiled contract description as produced by truffle.
type Artifact struct {
	ContractName string                `json:"contractName"`
	ABI          json.RawMessage       `json:"abi"`
	Networks     map[string]Deployment `json:"networks"`
}

// LoadArtifact reads an artifact JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	return &a, nil
}

// ParsedABI returns the artifact's ABI, falling back to DefaultABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	raw := []byte(DefaultABI)
	if a != nil && len(bytes.TrimSpace(a.ABI)) > 0 && string(bytes.TrimSpace(a.ABI)) != "null" {
		raw = a.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	return parsed, nil
}

// Address returns the contract address deployed on networkID.
func (a *Artifact) Address(networkID string) (common.Address, error) {
	if a == nil {
		return common.Address{}, fmt.Errorf("%w: no artifact", ErrNotDeployed)
	}
	d, ok := a.Networks[networkID]
	if !ok || !common.IsHexAddress(d.Address) {
		return common.Address{}, fmt.Errorf("%w: network %s", ErrNotDeployed, networkID)
	}
	return common.HexToAddress(d.Address), nil
}

// WithAddress returns a copy of a that resolves address on every network.
func (a *Artifact) WithAddress(networkID, address string) *Artifact {
	out := &Artifact{Networks: map[string]Deployment{}}
	if a != nil {
		out.ContractName = a.ContractName
		out.ABI = a.ABI
		for k, v := range a.Networks {
			out.Networks[k] = v
		}
	}
	out.Networks[strings.TrimSpace(networkID)] = Deployment{Address: address}
	return out
}

// Package land 定义土地登记的数据模型
//
// 主要类型:
//   - Fields: 登记表单的六个必填字段
//   - Record: 提交到合约的完整土地记录（字段 + 两个文档哈希）
//
// 合约参数顺序:
//
//	addLand(area, city, state, price, identifier, survey, documentHash, imageHash)
//
// 注意事项:
//   - 记录的权威副本保存在链上合约中，本包只负责构造和校验
//   - Record 创建后不会被修改或删除
package land

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Field names as they appear in forms, flags and JSON bodies.
const (
	FieldArea   = "area"
	FieldSurvey = "survey"
	FieldState  = "state"
	FieldPrice  = "price"
	FieldPID    = "pid"
	FieldCity   = "city"
)

// FieldOrder is the order the fields are presented in forms.
var FieldOrder = []string{FieldArea, FieldCity, FieldState, FieldPrice, FieldPID, FieldSurvey}

// Labels maps field names to display labels.
var Labels = map[string]string{
	FieldArea:   "Area(SqFt)",
	FieldCity:   "City",
	FieldState:  "State",
	FieldPrice:  "Land Price",
	FieldPID:    "PID",
	FieldSurvey: "Survey No",
}

// Record is a land parcel as stored by the registry contract.
type Record struct {
	Area            string `json:"area"`
	SurveyNumber    string `json:"surveyNumber"`
	State           string `json:"state"`
	City            string `json:"city"`
	Price           string `json:"price"`
	OwnerIdentifier string `json:"ownerIdentifier"`
	DocumentHash    string `json:"documentHash"`
	ImageHash       string `json:"imageHash"`
}

// NewRecord combines validated form fields with the two document hashes.
func NewRecord(f Fields, documentHash, imageHash string) Record {
	return Record{
		Area:            f.Area,
		SurveyNumber:    f.Survey,
		State:           f.State,
		City:            f.City,
		Price:           f.Price,
		OwnerIdentifier: f.PID,
		DocumentHash:    documentHash,
		ImageHash:       imageHash,
	}
}

// Args returns the addLand call arguments in contract order.
func (r Record) Args() []string {
	return []string{
		r.Area,
		r.City,
		r.State,
		r.Price,
		r.OwnerIdentifier,
		r.SurveyNumber,
		r.DocumentHash,
		r.ImageHash,
	}
}

// Fingerprint identifies the record content. Two submissions with the same
// fingerprint would create duplicate parcels on chain.
func (r Record) Fingerprint() string {
	h := sha256.New()
	for _, a := range r.Args() {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordFromArgs is the inverse of Args.
func RecordFromArgs(args []string) (Record, bool) {
	if len(args) != 8 {
		return Record{}, false
	}
	return Record{
		Area:            args[0],
		City:            args[1],
		State:           args[2],
		Price:           args[3],
		OwnerIdentifier: args[4],
		SurveyNumber:    args[5],
		DocumentHash:    args[6],
		ImageHash:       args[7],
	}, true
}

func normalize(v string) string {
	return strings.TrimSpace(v)
}

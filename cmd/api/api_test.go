package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landRegistry/pkg/app"
	"landRegistry/pkg/config"
	"landRegistry/pkg/registry"
)

const (
	devKey          = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress      = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	testFileContent = "Sale deed of survey SRV99, Pune.\n"
)

// response mirrors APIResponse with raw data for per-test decoding.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	*httptest.Server
	wire *app.Wire
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	cfg.Storage.ChunkPath = filepath.Join(dir, "chunks")
	cfg.Storage.ManifestPath = filepath.Join(dir, "manifests")
	cfg.Storage.BlockSize = 8
	cfg.Vault.Path = filepath.Join(dir, "vault.json")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Chain.Backend = config.BackendMemory
	cfg.Chain.Roles = map[string]string{devAddress: "seller"}

	w, err := app.NewWire(context.Background(), cfg)
	require.NoError(t, err)

	srv := NewServer(w)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.cancel()
		w.Close()
	})
	return &testServer{Server: ts, wire: w}
}

func decode(t *testing.T, resp *http.Response) response {
	t.Helper()
	defer resp.Body.Close()
	var r response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return r
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	return resp
}

// upload posts a multipart file to the documents endpoint.
func (ts *testServer) upload(t *testing.T, name, content string, wait bool) (*http.Response, uploadStatus) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	url := ts.URL + "/api/v1/documents"
	if wait {
		url += "?wait=true"
	}
	resp, err := http.Post(url, writer.FormDataContentType(), body)
	require.NoError(t, err)

	r := decode(t, resp)
	var st uploadStatus
	if len(r.Data) > 0 {
		require.NoError(t, json.Unmarshal(r.Data, &st))
	}
	return resp, st
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	resp := ts.postJSON(t, "/api/v1/auth/login", loginRequest{PrivateKey: devKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp)
}

func landBody(doc, img string) map[string]string {
	return map[string]string{
		"area":           "1200",
		"city":           "Pune",
		"state":          "MH",
		"price":          "500000",
		"pid":            "PAN123",
		"survey":         "SRV99",
		"documentUpload": doc,
		"imageUpload":    img,
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode(t, resp)
	assert.True(t, r.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(r.Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, config.BackendMemory, data["backend"])
}

func TestUploadAndDownloadFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, st := ts.upload(t, "deed.pdf", testFileContent, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, st.Completed)
	assert.Equal(t, 100, st.Progress)
	assert.True(t, strings.HasPrefix(st.Hash, "Qm"), st.Hash)
	assert.Equal(t, "deed.pdf", st.Name)

	resp = ts.get(t, "/api/v1/uploads/"+st.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again uploadStatus
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &again))
	assert.Equal(t, st.Hash, again.Hash)

	resp = ts.get(t, "/api/v1/documents/"+st.Hash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var manifest struct {
		CID    string `json:"cid"`
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		Leaves []any  `json:"leaves"`
	}
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &manifest))
	assert.Equal(t, int64(len(testFileContent)), manifest.Size)
	assert.Greater(t, len(manifest.Leaves), 1)

	resp = ts.get(t, "/api/v1/documents/"+st.Hash+"/content")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, testFileContent, string(content))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "deed.pdf")
}

func TestUploadProgressPolling(t *testing.T) {
	ts := newTestServer(t)

	resp, st := ts.upload(t, "plot.png", testFileContent, false)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, st.ID)

	require.Eventually(t, func() bool {
		resp := ts.get(t, "/api/v1/uploads/"+st.ID)
		var cur uploadStatus
		if err := json.Unmarshal(decode(t, resp).Data, &cur); err != nil {
			return false
		}
		return cur.Completed && cur.Hash != ""
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEmptyFileUpload(t *testing.T) {
	ts := newTestServer(t)

	resp, st := ts.upload(t, "empty.pdf", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, st.Error)
	assert.Empty(t, st.Hash)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/v1/uploads/missing",
		"/api/v1/documents/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"/api/v1/submissions/missing",
	} {
		resp := ts.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		r := decode(t, resp)
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/auth/login", loginRequest{PrivateKey: devKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login registry.Login
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &login))
	assert.Equal(t, devAddress, strings.ToLower(login.Account))
	assert.Equal(t, registry.RouteUserDashboard, login.Route)
	assert.Equal(t, "memory", login.Network.ID)
}

func TestLoginFailure(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/auth/login", loginRequest{PrivateKey: "0x1234"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	r := decode(t, resp)
	assert.False(t, r.Success)
	assert.Equal(t, registry.AlertLoadFailed, r.Error)
}

func TestRegisterLand(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	_, doc := ts.upload(t, "deed.pdf", testFileContent, true)
	_, img := ts.upload(t, "plot.png", "plot image bytes", true)

	resp := ts.postJSON(t, "/api/v1/lands", landBody(doc.ID, img.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out registerLandResponse
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &out))
	assert.Equal(t, registry.RouteUserDashboard, out.Route)
	require.NotNil(t, out.Receipt)
	assert.NotEmpty(t, out.Receipt.TxHash)
	assert.Equal(t, doc.Hash, out.Record.DocumentHash)
	assert.Equal(t, img.Hash, out.Record.ImageHash)

	lands := ts.wire.Ledger.Lands()
	require.Len(t, lands, 1)
	assert.Equal(t, []string{"1200", "Pune", "MH", "500000", "PAN123", "SRV99", doc.Hash, img.Hash}, lands[0].Record.Args())

	resp = ts.get(t, "/api/v1/submissions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var subs []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "confirmed", subs[0]["status"])

	// registered sessions are released
	assert.Zero(t, ts.wire.Uploader.Len())
	resp = ts.get(t, "/api/v1/uploads/"+doc.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	decode(t, resp)

	// the same record again is rejected
	_, doc2 := ts.upload(t, "deed.pdf", testFileContent, true)
	_, img2 := ts.upload(t, "plot.png", "plot image bytes", true)
	require.Equal(t, doc.Hash, doc2.Hash)
	resp = ts.postJSON(t, "/api/v1/lands", landBody(doc2.ID, img2.ID))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	decode(t, resp)
	assert.Len(t, ts.wire.Ledger.Lands(), 1)
	assert.Equal(t, 2, ts.wire.Uploader.Len(), "sessions kept after a rejected registration")
}

func TestRegisterLandValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	body := landBody("a", "b")
	body["city"] = "  "
	resp := ts.postJSON(t, "/api/v1/lands", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r := decode(t, resp)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(r.Data, &fields))
	assert.Equal(t, "city name required", fields["city"])
	assert.Empty(t, ts.wire.Ledger.Lands())
}

func TestRegisterLandUnknownUpload(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postJSON(t, "/api/v1/lands", landBody("missing", "missing"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp)
}

func TestRegisterLandWithoutLogin(t *testing.T) {
	ts := newTestServer(t)

	_, doc := ts.upload(t, "deed.pdf", testFileContent, true)
	_, img := ts.upload(t, "plot.png", "plot image bytes", true)

	resp := ts.postJSON(t, "/api/v1/lands", landBody(doc.ID, img.ID))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	decode(t, resp)
	assert.Empty(t, ts.wire.Ledger.Lands())
}

func TestInvalidHTTPMethods(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/lands", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

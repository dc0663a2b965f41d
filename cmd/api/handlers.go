package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/credential"
	"landRegistry/pkg/docstore"
	"landRegistry/pkg/journal"
	"landRegistry/pkg/land"
	"landRegistry/pkg/registry"
	"landRegistry/pkg/upload"
)

// multipartMemory 解析 multipart 表单时保留在内存中的最大字节数
const multipartMemory = 32 << 20

// APIResponse 统一的API响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// respondJSON 发送JSON响应
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// respondError 发送错误响应
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// respondSuccess 发送成功响应
func (s *Server) respondSuccess(w http.ResponseWriter, data interface{}) {
	s.respondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, land.ErrInvalidForm):
		return http.StatusBadRequest
	case errors.Is(err, credential.ErrInvalidKey), errors.Is(err, docstore.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, credential.ErrNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDocumentsPending),
		errors.Is(err, registry.ErrSubmitInFlight),
		errors.Is(err, journal.ErrDuplicate),
		errors.Is(err, journal.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, contract.ErrReverted), errors.Is(err, contract.ErrNotDeployed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status":  "ok",
		"service": "landreg-api",
		"backend": s.config.Chain.Backend,
	}
	if s.wire.Node != nil {
		data["peerId"] = s.wire.Node.Host.ID().String()
	}
	s.respondSuccess(w, data)
}

// uploadStatus 上传会话状态
type uploadStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Progress  int    `json:"progress"`
	Hash      string `json:"hash,omitempty"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

func statusOf(sess *upload.Session) uploadStatus {
	st := uploadStatus{
		ID:        sess.ID,
		Name:      sess.Name,
		Size:      sess.Size,
		Progress:  sess.Progress(),
		Completed: sess.Completed(),
	}
	if st.Completed {
		st.Hash = sess.Hash()
	}
	if err := sess.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// tempFile removes itself from disk when closed.
type tempFile struct {
	*os.File
}

func (f tempFile) Close() error {
	err := f.File.Close()
	if rerr := os.Remove(f.Name()); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// handleDocumentUpload 上传文档，返回上传会话
//
// 请求体会先写入临时文件，上传在后台进行。带 ?wait=true 时等待上传完成后再返回。
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.HTTP.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.HTTP.MaxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to get file: %v", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "landreg-upload-*")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create temp file: %v", err))
		return
	}
	size, err := io.Copy(tmp, file)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tempFile{tmp}.Close()
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to buffer upload: %v", err))
		return
	}

	sess := s.wire.Uploader.Upload(s.ctx, header.Filename, tempFile{tmp}, size)
	logrus.WithFields(logrus.Fields{
		"session": sess.ID,
		"file":    header.Filename,
		"size":    size,
	}).Info("Document upload started")

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if _, err := sess.Wait(r.Context()); err != nil {
			s.respondJSON(w, statusFor(err), APIResponse{Success: false, Data: statusOf(sess), Error: err.Error()})
			return
		}
		s.respondSuccess(w, statusOf(sess))
		return
	}
	s.respondJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: statusOf(sess)})
}

// handleUploadStatus 查询上传进度
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.wire.Uploader.Session(r.PathValue("id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "Upload session not found")
		return
	}
	s.respondSuccess(w, statusOf(sess))
}

// handleDocumentInfo 获取文档清单
func (s *Server) handleDocumentInfo(w http.ResponseWriter, r *http.Request) {
	m, err := s.wire.Document(r.Context(), r.PathValue("cid"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondSuccess(w, m)
}

// handleDocumentContent 下载文档内容
func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	m, err := s.wire.Document(r.Context(), cid)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	if err := s.wire.Store.Open(r.Context(), cid, w); err != nil {
		// 响应头已发送，只能记录日志
		logrus.WithError(err).WithField("cid", cid).Error("Failed to stream document")
	}
}

// loginRequest 登录请求
type loginRequest struct {
	PrivateKey string `json:"privateKey"`
}

// handleLogin 私钥登录
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	var alerts []string
	alert := registry.AlerterFunc(func(message string) { alerts = append(alerts, message) })
	res, err := s.wire.NewAuthenticator(nil, alert).Login(r.Context(), req.PrivateKey)
	if err != nil {
		message := registry.AlertLoadFailed
		if len(alerts) > 0 {
			message = alerts[0]
		}
		s.respondError(w, http.StatusUnauthorized, message)
		return
	}
	s.respondSuccess(w, res)
}

// registerLandRequest 土地登记请求，文档以上传会话 ID 引用
type registerLandRequest struct {
	land.Fields
	DocumentUpload string `json:"documentUpload"`
	ImageUpload    string `json:"imageUpload"`
}

// registerLandResponse 土地登记结果
type registerLandResponse struct {
	Receipt *contract.Receipt `json:"receipt"`
	Record  land.Record       `json:"record"`
	Route   string            `json:"route"`
}

// handleRegisterLand 登记土地
func (s *Server) handleRegisterLand(w http.ResponseWriter, r *http.Request) {
	var req registerLandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	nav := &registry.Recorder{}
	form := s.wire.NewRegistrationForm(nav)
	for _, name := range land.FieldOrder {
		if err := form.Set(name, req.Get(name)); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if verrs := form.Errors(); verrs != nil {
		s.respondJSON(w, http.StatusBadRequest, APIResponse{Success: false, Data: verrs, Error: verrs.Error()})
		return
	}

	for _, ref := range []struct {
		slot *upload.Slot
		id   string
	}{
		{form.Document, req.DocumentUpload},
		{form.Image, req.ImageUpload},
	} {
		sess, ok := s.wire.Uploader.Session(ref.id)
		if !ok {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s upload %q not found", ref.slot.Label, ref.id))
			return
		}
		ref.slot.Attach(sess)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.ChainTimeout())
	defer cancel()
	receipt, err := form.Submit(ctx)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	// 已登记的上传会话不再需要
	s.wire.Uploader.Forget(req.DocumentUpload)
	s.wire.Uploader.Forget(req.ImageUpload)

	s.respondSuccess(w, registerLandResponse{
		Receipt: receipt,
		Record:  land.NewRecord(form.Fields(), form.Document.Hash(), form.Image.Hash()),
		Route:   nav.Last(),
	})
}

// handleSubmissionList 列出提交记录
func (s *Server) handleSubmissionList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.wire.Journal.List(r.Context())
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if subs == nil {
		subs = []journal.Submission{}
	}
	s.respondSuccess(w, subs)
}

// handleSubmission 获取单条提交记录
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.wire.Journal.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondSuccess(w, sub)
}

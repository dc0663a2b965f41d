// Package registry 实现土地登记客户端的两个表单
//
// 主要组件:
//   - RegistrationForm: 土地登记表单（六个必填字段 + 两个文档上传槽）
//   - Authenticator: 私钥登录表单，解析账户、网络、合约实例和角色
//   - Navigator / Alerter: 页面跳转和提示框的抽象，由 CLI、HTTP API、TUI 分别实现
//
// 页面路由:
//   - /user/dashboard: 登记成功后，或卖家/买家登录后
//   - /inspector/dashboard: 土地检查员登录后
//   - /user/registration: 登录账户尚无任何角色
//
// 注意事项:
//   - 表单字段校验失败时禁止提交
//   - 交易失败只记录日志并返回错误，不跳转页面
//   - 登录失败时恰好弹出一次提示
package registry

import (
	"sync"
)

const (
	RouteUserDashboard      = "/user/dashboard"
	RouteInspectorDashboard = "/inspector/dashboard"
	RouteRegistration       = "/user/registration"
)

// AlertLoadFailed is shown once whenever login fails.
const AlertLoadFailed = "Failed to load web3, accounts, or contract. Check console for details."

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(route string)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(message string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(message string)

func (f AlerterFunc) Alert(message string) { f(message) }

// Recorder is a Navigator and Alerter that remembers what it was asked to do.
type Recorder struct {
	mu     sync.Mutex
	routes []string
	alerts []string
}

func (r *Recorder) Navigate(route string) {
	r.mu.Lock()
	r.routes = append(r.routes, route)
	r.mu.Unlock()
}

func (r *Recorder) Alert(message string) {
	r.mu.Lock()
	r.alerts = append(r.alerts, message)
	r.mu.Unlock()
}

// Routes returns every navigation in order.
func (r *Recorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

// Alerts returns every alert in order.
func (r *Recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

// Last returns the most recent route, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

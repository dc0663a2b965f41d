// Package tui 提供土地登记客户端的终端界面
//
// 核心功能:
//   - 私钥登录页: 密码样式输入框，失败时显示一次提示
//   - 土地登记页: 六个必填字段、两个文件上传槽（带进度条）、提交按钮
//   - 仪表盘页: 当前账户、角色以及本地提交记录
//
// 主要组件:
//   - App: 顶层 bubbletea 模型，根据 registry 的路由在页面之间切换
//   - AuthView / RegistrationView / DashboardView: 各页面的视图
//   - Styles: lipgloss 样式
//
// 使用示例:
//
//	app := tui.NewApp(ctx, tui.Ports{...})
//	if err := app.Run(); err != nil {
//	    return err
//	}
//
// 注意事项:
//   - 所有耗时操作（登录、上传、提交）都在 tea.Cmd 中执行，界面保持响应
//   - 必填字段未填写完整时提交按钮处于禁用状态
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette of the interface.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#16A34A"),
		Secondary:  lipgloss.Color("#0EA5E9"),
		Foreground: lipgloss.Color("#E5E7EB"),
		Muted:      lipgloss.Color("#6B7280"),
		Success:    lipgloss.Color("#A6E3A1"),
		Error:      lipgloss.Color("#F38BA8"),
		Border:     lipgloss.Color("#45475A"),
	}
}

// Styles holds the pre-built lipgloss styles.
type Styles struct {
	Title      lipgloss.Style
	Label      lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	InputField lipgloss.Style
	Focused    lipgloss.Style
	Button     lipgloss.Style
	Disabled   lipgloss.Style
	Help       lipgloss.Style
}

// NewStyles builds styles from theme. A nil theme selects the default.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),
		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Error: lipgloss.NewStyle().
			Foreground(theme.Error),
		Success: lipgloss.NewStyle().
			Foreground(theme.Success),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		Focused: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),
		Button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(theme.Primary).
			Padding(0, 2),
		Disabled: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Border).
			Padding(0, 2),
		Help: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

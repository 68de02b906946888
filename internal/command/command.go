// Package command implements the control commands: status query, config
// query, enable/disable, threshold adjustment, and a manual warning test.
// Replies are user-facing chat text, so failures come back as reply strings
// rather than errors.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sessentry/sessentry/internal/config"
	"github.com/sessentry/sessentry/internal/loginstate"
	"github.com/sessentry/sessentry/internal/monitor"
)

// Command literals.
const (
	CmdStatus    = "$预警状态"
	CmdConfig    = "$预警配置"
	CmdEnable    = "$预警启用"
	CmdDisable   = "$预警禁用"
	CmdThreshold = "$预警阈值"
	CmdTest      = "$预警测试"
)

// qrDeliveryTimeout bounds the asynchronous QR delivery a test command kicks off.
const qrDeliveryTimeout = time.Minute

// Handler routes control commands to their implementations.
type Handler struct {
	store   *config.Store
	src     *loginstate.Source
	mon     *monitor.Monitor
	deliver *monitor.Deliverer
	log     *slog.Logger

	// qrDelay is the pause before the test command's QR follow-up.
	qrDelay time.Duration
}

// NewHandler creates a Handler.
func NewHandler(store *config.Store, src *loginstate.Source, mon *monitor.Monitor, deliver *monitor.Deliverer, log *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		src:     src,
		mon:     mon,
		deliver: deliver,
		log:     log,
		qrDelay: time.Second,
	}
}

// Handle executes the command in content and returns the reply text. The
// sender identifies who issued the command; the test command sends its QR
// code there. The second return value reports whether content matched a
// known command.
func (h *Handler) Handle(ctx context.Context, content, sender string) (string, bool) {
	content = strings.TrimSpace(content)
	switch {
	case content == CmdStatus:
		return h.statusQuery(), true
	case content == CmdConfig:
		return h.configQuery(), true
	case content == CmdEnable:
		return h.enable(), true
	case content == CmdDisable:
		return h.disable(), true
	case strings.HasPrefix(content, CmdThreshold):
		return h.setThreshold(content), true
	case content == CmdTest:
		return h.warningTest(sender), true
	}
	return "", false
}

// ///////////////////////////////////////////////
// Status & config queries
// ///////////////////////////////////////////////

func (h *Handler) statusQuery() string {
	if _, err := h.src.Identity(); err != nil {
		return "❌ 无法获取当前登录信息，请确保微信已正常登录。"
	}
	loginTime, err := h.src.LoginTime()
	if err != nil {
		return "❌ 无法获取登录时间信息。"
	}

	cfg := h.store.Snapshot()
	ev := monitor.Evaluate(time.Now(), loginTime, cfg.Enabled, cfg.Target, cfg.ThresholdHours, cfg.SessionDurationHours)

	if ev.RemainingHours > 0 {
		return fmt.Sprintf("⚠️ 当前预警状态\n您已持续在线超过%.1f小时，预计%.1f小时内即将掉线。",
			ev.OnlineHours, ev.RemainingHours)
	}
	return fmt.Sprintf("🔴 当前预警状态\n您已持续在线超过%.1f小时，session可能已过期，建议立即重新登录！",
		ev.OnlineHours)
}

func (h *Handler) configQuery() string {
	cfg := h.store.Snapshot()

	wxid, deviceID := "未获取到", "未获取到"
	if id, err := h.src.Identity(); err == nil {
		if id.ID != "" {
			wxid = id.ID
		}
		if id.DeviceID != "" {
			deviceID = id.DeviceID
		}
	}

	target := cfg.Target
	if target == "" {
		target = "未设置"
	}
	state := "已禁用"
	if cfg.Enabled {
		state = "已启用"
	}

	return fmt.Sprintf("📋 配置信息:\n"+
		"   API服务器: %s:%d%s\n"+
		"   登录微信ID: %s\n"+
		"   设备ID: %s\n"+
		"   预警接收者: %s\n"+
		"   预警状态: %s\n"+
		"   预警阈值: %g小时",
		cfg.APIHost, cfg.APIPort, cfg.APIPathPrefix,
		wxid, deviceID, target, state, cfg.ThresholdHours)
}

// ///////////////////////////////////////////////
// Enable / disable / threshold
// ///////////////////////////////////////////////

func (h *Handler) enable() string {
	if err := h.store.SetEnabled(true); err != nil {
		h.log.Error("enabling warnings", "error", err)
		return fmt.Sprintf("❌ 启用预警失败: %v", err)
	}
	h.mon.Start()
	return "✅ 已启用自动掉线预警功能"
}

func (h *Handler) disable() string {
	if err := h.store.SetEnabled(false); err != nil {
		h.log.Error("disabling warnings", "error", err)
		return fmt.Sprintf("❌ 禁用预警失败: %v", err)
	}
	h.mon.Stop()
	return "⛔️ 已禁用自动掉线预警功能"
}

func (h *Handler) setThreshold(content string) string {
	parts := strings.Fields(content)
	if len(parts) != 2 {
		return "❌ 指令格式错误，请使用：$预警阈值 xh（如：$预警阈值 2h）"
	}

	arg := strings.ToLower(parts[1])
	if !strings.HasSuffix(arg, "h") {
		return "❌ 阈值格式错误，请使用小时单位，如：2h"
	}

	threshold, err := strconv.ParseFloat(strings.TrimSuffix(arg, "h"), 64)
	if err != nil {
		return "❌ 阈值必须是数字，如：2h"
	}
	if threshold < config.MinThresholdHours || threshold > config.MaxThresholdHours {
		return "❌ 阈值范围必须在0-72小时之间"
	}

	if err := h.store.SetThreshold(threshold); err != nil {
		h.log.Error("setting threshold", "error", err)
		return fmt.Sprintf("❌ 设置阈值失败: %v", err)
	}

	trigger := h.store.Snapshot().SessionDurationHours - threshold
	return fmt.Sprintf("✅ 已调整预警阈值为%g小时，当持续在线时长超过%g小时时将自动触发预警。",
		threshold, trigger)
}

// ///////////////////////////////////////////////
// Warning test
// ///////////////////////////////////////////////

// warningTest composes the test report synchronously and delivers a login QR
// code to the issuer in the background. The cooldown does not apply and the
// test never counts as a fired warning.
func (h *Handler) warningTest(sender string) string {
	if _, err := h.src.Identity(); err != nil {
		return "❌ 无法获取当前登录信息，请确保微信已正常登录。"
	}
	loginTime, err := h.src.LoginTime()
	if err != nil {
		return "❌ 无法获取登录时间信息。"
	}

	cfg := h.store.Snapshot()
	ev := monitor.Evaluate(time.Now(), loginTime, cfg.Enabled, cfg.Target, cfg.ThresholdHours, cfg.SessionDurationHours)

	target := sender
	if target == "" {
		target = cfg.Target
	}
	if target != "" {
		go h.deliverTestQR(target)
	}

	return fmt.Sprintf("⚠️ 掉线预警测试\n"+
		"您已持续在线超过%.0f小时，预计%.0f小时内即将掉线。\n"+
		"为避免服务中断，请手动扫码重新登录！稍后将为您发送登录二维码。",
		ev.OnlineHours, ev.RemainingHours)
}

func (h *Handler) deliverTestQR(target string) {
	time.Sleep(h.qrDelay)
	ctx, cancel := context.WithTimeout(context.Background(), qrDeliveryTimeout)
	defer cancel()
	if err := h.deliver.SendLoginQR(ctx, target); err != nil {
		h.log.Error("test QR delivery failed", "to", target, "error", err)
		return
	}
	h.log.Info("test QR delivered", "to", target)
}

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/internal/logx"
	"pkt.systems/smallrhost/internal/rvec"
	"pkt.systems/smallrhost/internal/sessionprefs"
	"pkt.systems/smallrhost/internal/version"
	"pkt.systems/smallrhost/schema"
)

const defaultHistoryShown = 10
const defaultConsoleShown = 20

// Output receives lines produced by commands.
type Output interface {
	Println(text string)
}

// HandlerConfig configures slash command behavior.
type HandlerConfig struct {
	Panels core.PanelCatalog
	// EvaluatorState describes the evaluator lifecycle for /status.
	EvaluatorState func() string
	// OnShowConsole is called when /console toggles transcript display.
	OnShowConsole       func(show bool)
	DisableAuditLogging bool
}

// Handler routes slash commands to service operations.
type Handler struct {
	service core.Service
	out     Output
	cfg     HandlerConfig
}

// NewHandler constructs a command handler.
func NewHandler(service core.Service, out Output, cfg HandlerConfig) *Handler {
	return &Handler{service: service, out: out, cfg: cfg}
}

// Handle inspects input and executes slash commands. It reports false when
// input is not a command.
func (h *Handler) Handle(ctx context.Context, input string) (bool, error) {
	if ctx == nil {
		return false, errors.New("missing context")
	}
	cmd, ok := Parse(input)
	if !ok {
		return false, nil
	}
	if !h.cfg.DisableAuditLogging {
		logx.Ctx(ctx).Debug("audit command", "command_type", "slash", "command", strings.TrimSpace(input))
	}
	log := logx.Ctx(ctx).With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command slash request")
	switch cmd.Name {
	case "":
		log.Warn("command slash rejected", "reason", "empty")
		return true, fmt.Errorf("invalid command")
	case "help":
		h.printLines(helpLines())
		return true, nil
	case "panels":
		return true, h.handlePanels(ctx)
	case "panel":
		return true, h.handlePanel(ctx, cmd)
	case "open":
		return true, h.handleOpen(ctx, cmd)
	case "close":
		return true, h.handleClose(ctx, cmd)
	case "set":
		return true, h.handleSet(ctx, cmd)
	case "params":
		return true, h.handleParams(ctx)
	case "run":
		return true, h.handleRun(ctx, false)
	case "regen":
		return true, h.handleRun(ctx, true)
	case "reset":
		return true, h.handleReset(ctx)
	case "source":
		return true, h.handleSource(ctx)
	case "history":
		return true, h.handleHistory(ctx, cmd)
	case "log":
		return true, h.handleLog(ctx, cmd)
	case "console":
		return true, h.handleToggleConsole(ctx)
	case "json":
		return true, h.handleJSON(ctx)
	case "status":
		return true, h.handleStatus(ctx)
	case "version":
		h.out.Println(version.Read().String())
		return true, nil
	default:
		log.Warn("command slash rejected", "reason", "unknown")
		return true, fmt.Errorf("unknown command: /%s", cmd.Name)
	}
}

// Submit replaces the active panel's source with code and runs it.
func (h *Handler) Submit(ctx context.Context, code string) (schema.RunResponse, error) {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return schema.RunResponse{}, err
	}
	log := logx.WithPanel(ctx, panelID).With("source_len", len(code))
	if _, err := h.service.SetSource(ctx, schema.SetSourceRequest{PanelID: panelID, Source: code}); err != nil {
		log.Warn("command submit failed", "err", err)
		return schema.RunResponse{}, err
	}
	resp, err := h.service.Run(ctx, schema.RunRequest{PanelID: panelID})
	if err != nil {
		log.Warn("command submit failed", "err", err)
		return schema.RunResponse{}, err
	}
	if !resp.Published {
		h.appendStatus(fmt.Sprintf("run %d superseded by a newer run", resp.Update.Token))
	}
	log.Info("command submit completed", "token", uint64(resp.Update.Token), "published", resp.Published)
	return resp, nil
}

func (h *Handler) activePanel(ctx context.Context) (schema.PanelID, error) {
	prefs := sessionprefs.FromContext(ctx)
	if prefs == nil || prefs.ActivePanel == "" {
		return "", errors.New("no active panel; use /panel <id>")
	}
	return prefs.ActivePanel, nil
}

func (h *Handler) handlePanels(ctx context.Context) error {
	resp, err := h.service.ListPanels(ctx, schema.ListPanelsRequest{})
	if err != nil {
		return err
	}
	if len(resp.Panels) == 0 {
		h.out.Println("no panels")
		return nil
	}
	active, _ := h.activePanel(ctx)
	for _, panel := range resp.Panels {
		marker := " "
		if panel.ID == active {
			marker = "*"
		}
		h.out.Println(fmt.Sprintf("%s %-14s %-11s %-8s %s", marker, panel.ID, panel.Kind, panel.Status, lastOutcome(panel)))
	}
	return nil
}

func (h *Handler) handlePanel(ctx context.Context, cmd Command) error {
	prefs := sessionprefs.FromContext(ctx)
	if prefs == nil {
		return errors.New("no session")
	}
	if len(cmd.Args) == 0 {
		if prefs.ActivePanel == "" {
			h.out.Println("no active panel")
			return nil
		}
		h.out.Println("active panel: " + string(prefs.ActivePanel))
		return nil
	}
	panelID := schema.PanelID(cmd.Args[0])
	if _, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: panelID}); err != nil {
		logx.WithPanel(ctx, panelID).Warn("command panel rejected", "err", err)
		return err
	}
	prefs.ActivePanel = panelID
	h.appendStatus("active panel " + string(panelID))
	return nil
}

func (h *Handler) handleOpen(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("usage: /open <kind> [id]")
	}
	kind, err := schema.NormalizePanelKind(cmd.Args[0])
	if err != nil {
		return err
	}
	req := schema.CreatePanelRequest{Kind: kind}
	if len(cmd.Args) > 1 {
		req.PanelID = schema.PanelID(cmd.Args[1])
	}
	resp, err := h.service.CreatePanel(ctx, req)
	if err != nil {
		logx.Ctx(ctx).Warn("command open failed", "kind", string(kind), "err", err)
		return err
	}
	if prefs := sessionprefs.FromContext(ctx); prefs != nil {
		prefs.ActivePanel = resp.Panel.ID
	}
	h.appendStatus(fmt.Sprintf("opened %s panel %s", resp.Panel.Kind, resp.Panel.ID))
	return nil
}

func (h *Handler) handleClose(ctx context.Context, cmd Command) error {
	var panelID schema.PanelID
	if len(cmd.Args) > 0 {
		panelID = schema.PanelID(cmd.Args[0])
	} else {
		active, err := h.activePanel(ctx)
		if err != nil {
			return err
		}
		panelID = active
	}
	if _, err := h.service.ClosePanel(ctx, schema.ClosePanelRequest{PanelID: panelID}); err != nil {
		logx.WithPanel(ctx, panelID).Warn("command close failed", "err", err)
		return err
	}
	if prefs := sessionprefs.FromContext(ctx); prefs != nil && prefs.ActivePanel == panelID {
		prefs.ActivePanel = ""
	}
	h.appendStatus("closed panel " + string(panelID))
	return nil
}

func (h *Handler) handleSet(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 2 {
		return fmt.Errorf("usage: /set <parameter> <value>")
	}
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(cmd.Args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %s is not a number", schema.ErrInvalidParameter, cmd.Args[1])
	}
	resp, err := h.service.SetParameter(ctx, schema.SetParameterRequest{PanelID: panelID, Name: cmd.Args[0], Value: value})
	if err != nil {
		logx.WithPanel(ctx, panelID).Warn("command set failed", "parameter", cmd.Args[0], "err", err)
		return err
	}
	h.appendStatus(fmt.Sprintf("%s = %s (run %d scheduled)", cmd.Args[0], rvec.FormatNumber(resp.Value), resp.Token))
	return nil
}

func (h *Handler) handleParams(ctx context.Context) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	resp, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: panelID})
	if err != nil {
		return err
	}
	var specs []schema.ParameterSpec
	if h.cfg.Panels != nil {
		if spec, ok := h.cfg.Panels.Lookup(resp.Panel.Kind); ok {
			specs = spec.Parameters()
		}
	}
	if len(specs) == 0 {
		names := make([]string, 0, len(resp.Panel.Parameters))
		for name := range resp.Panel.Parameters {
			names = append(names, name)
		}
		if len(names) == 0 {
			h.out.Println("no parameters")
			return nil
		}
		sort.Strings(names)
		for _, name := range names {
			h.out.Println(fmt.Sprintf("%s = %s", name, rvec.FormatNumber(resp.Panel.Parameters[name])))
		}
		return nil
	}
	labels := make([]string, 0, len(specs))
	for _, spec := range specs {
		labels = append(labels, spec.Name)
	}
	width := maxLabelWidth(labels)
	for _, spec := range specs {
		value := fmt.Sprintf("%s  [%s..%s] %s", rvec.FormatNumber(resp.Panel.Parameters[spec.Name]), rvec.FormatNumber(spec.Min), rvec.FormatNumber(spec.Max), spec.Label)
		if spec.Bind {
			value += " (bound)"
		}
		h.out.Println(formatStatusLine(spec.Name, value, width))
	}
	return nil
}

func (h *Handler) handleRun(ctx context.Context, regenerate bool) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	var resp schema.RunResponse
	if regenerate {
		resp, err = h.service.Regenerate(ctx, schema.RegenerateRequest{PanelID: panelID})
	} else {
		resp, err = h.service.Run(ctx, schema.RunRequest{PanelID: panelID})
	}
	if err != nil {
		logx.WithPanel(ctx, panelID).Warn("command run failed", "regenerate", regenerate, "err", err)
		return err
	}
	if !resp.Published {
		h.appendStatus(fmt.Sprintf("run %d superseded by a newer run", resp.Update.Token))
	}
	return nil
}

func (h *Handler) handleReset(ctx context.Context) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	if _, err := h.service.ResetSource(ctx, schema.ResetSourceRequest{PanelID: panelID}); err != nil {
		return err
	}
	h.appendStatus("source reset to the panel default; /run to evaluate it")
	return nil
}

func (h *Handler) handleSource(ctx context.Context) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	resp, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: panelID})
	if err != nil {
		return err
	}
	h.printLines(strings.Split(strings.TrimRight(resp.Panel.Source, "\n"), "\n"))
	return nil
}

func (h *Handler) handleHistory(ctx context.Context, cmd Command) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	limit, err := optionalCount(cmd, defaultHistoryShown)
	if err != nil {
		return err
	}
	resp, err := h.service.GetHistory(ctx, schema.GetHistoryRequest{PanelID: panelID})
	if err != nil {
		return err
	}
	if len(resp.Entries) == 0 {
		h.out.Println("no history")
		return nil
	}
	start := max(0, len(resp.Entries)-limit)
	for i := start; i < len(resp.Entries); i++ {
		entry := strings.TrimRight(resp.Entries[i], "\n")
		first, _, multi := strings.Cut(entry, "\n")
		line := fmt.Sprintf("%3d  %s", i+1, first)
		if multi {
			line += fmt.Sprintf(" ... (%d lines)", strings.Count(entry, "\n")+1)
		}
		h.out.Println(line)
	}
	return nil
}

func (h *Handler) handleLog(ctx context.Context, cmd Command) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	limit, err := optionalCount(cmd, defaultConsoleShown)
	if err != nil {
		return err
	}
	resp, err := h.service.GetConsole(ctx, schema.GetConsoleRequest{PanelID: panelID, Limit: limit})
	if err != nil {
		return err
	}
	if resp.TotalLines > len(resp.Lines) {
		h.out.Println(fmt.Sprintf("... %d earlier lines", resp.TotalLines-len(resp.Lines)))
	}
	h.printLines(resp.Lines)
	return nil
}

func (h *Handler) handleToggleConsole(ctx context.Context) error {
	prefs := sessionprefs.FromContext(ctx)
	if prefs == nil {
		return errors.New("no session")
	}
	prefs.ShowConsole = !prefs.ShowConsole
	if h.cfg.OnShowConsole != nil {
		h.cfg.OnShowConsole(prefs.ShowConsole)
	}
	state := "hidden"
	if prefs.ShowConsole {
		state = "shown"
	}
	h.appendStatus("console output " + state)
	return nil
}

func (h *Handler) handleJSON(ctx context.Context) error {
	panelID, err := h.activePanel(ctx)
	if err != nil {
		return err
	}
	resp, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: panelID})
	if err != nil {
		return err
	}
	last := resp.Panel.LastResult
	if last == nil {
		h.out.Println("no result yet")
		return nil
	}
	if !last.Succeeded() {
		h.out.Println(fmt.Sprintf("last run failed (%s): %s", last.FailureKind.Label(), firstLine(last.Message)))
		return nil
	}
	data, err := json.MarshalIndent(shapeJSON(last.Shape), "", "  ")
	if err != nil {
		return err
	}
	h.printLines(strings.Split(string(data), "\n"))
	return nil
}

func (h *Handler) handleStatus(ctx context.Context) error {
	state := "unknown"
	if h.cfg.EvaluatorState != nil {
		state = h.cfg.EvaluatorState()
	}
	labels := []string{"Evaluator", "Panels", "Active", "Pending", "Last run"}
	width := maxLabelWidth(labels)
	list, err := h.service.ListPanels(ctx, schema.ListPanelsRequest{})
	if err != nil {
		return err
	}
	lines := []string{
		formatStatusLine("Evaluator", state, width),
		formatStatusLine("Panels", strconv.Itoa(len(list.Panels)), width),
	}
	if active, err := h.activePanel(ctx); err == nil {
		resp, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: active})
		if err != nil {
			return err
		}
		pending := "none"
		if resp.Panel.PendingRun != 0 {
			pending = fmt.Sprintf("run %d", resp.Panel.PendingRun)
		}
		lines = append(lines,
			formatStatusLine("Active", fmt.Sprintf("%s (%s, %s)", active, resp.Panel.Kind, resp.Panel.Status), width),
			formatStatusLine("Pending", pending, width),
			formatStatusLine("Last run", lastOutcome(resp.Panel), width),
		)
	} else {
		lines = append(lines, formatStatusLine("Active", "none", width))
	}
	h.printLines(lines)
	return nil
}

func helpLines() []string {
	return []string{
		"Commands",
		"  /panels               list panels",
		"  /panel [id]           show or switch the active panel",
		"  /open <kind> [id]     open a new panel",
		"  /close [id]           close a panel",
		"  /set <name> <value>   change a parameter (debounced rerun)",
		"  /params               show parameters of the active panel",
		"  /run                  run the active panel now",
		"  /regen                regenerate data and run",
		"  /reset                restore the default program",
		"  /source               print the current program",
		"  /history [n]          show submitted programs",
		"  /log [n]              show the console transcript",
		"  /console              toggle console output in results",
		"  /json                 print the last structured result",
		"  /status               show evaluator and panel status",
		"  /version              show version information",
		"  /quit                 leave",
		"Anything else is evaluated as code in the active panel.",
	}
}

func (h *Handler) appendStatus(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	h.out.Println("status: " + message)
}

func (h *Handler) printLines(lines []string) {
	for _, line := range lines {
		h.out.Println(line)
	}
}

func optionalCount(cmd Command, fallback int) (int, error) {
	if len(cmd.Args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("usage: /%s [count]", cmd.Name)
	}
	return n, nil
}

func lastOutcome(panel schema.PanelSnapshot) string {
	last := panel.LastResult
	if last == nil {
		return "never run"
	}
	if last.Succeeded() {
		return fmt.Sprintf("ok (run %d, %s)", last.Token, last.Reason)
	}
	return fmt.Sprintf("failed: %s (run %d, %s)", last.FailureKind.Label(), last.Token, last.Reason)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}

// shapeJSON maps a shape onto the evaluator's field names. Non-finite
// numbers become null.
func shapeJSON(shape schema.PanelShape) any {
	switch v := shape.(type) {
	case schema.PlaygroundShape:
		if v.HasStructured {
			return v.Structured
		}
		return v.Value
	case schema.RegressionShape:
		return map[string]any{"intercept": num(v.Intercept), "slope": num(v.Slope), "r2": num(v.R2), "yhat": nums(v.Yhat)}
	case schema.StatsShape:
		return map[string]any{"values": nums(v.Values), "sorted": nums(v.Sorted), "labels": v.Labels, "mean": num(v.Mean), "sd": num(v.SD)}
	case schema.DataFrameShape:
		rows := make([]map[string]any, 0, len(v.Rows))
		for _, row := range v.Rows {
			rows = append(rows, map[string]any{"name": row.Name, "age": num(row.Age), "score": num(row.Score), "pass": row.Pass})
		}
		return map[string]any{"rows": rows, "mean_score": num(v.MeanScore), "mean_age": num(v.MeanAge)}
	case schema.TextShape:
		return v.Lines
	case schema.TimeSeriesShape:
		return map[string]any{"original": nums(v.Original), "ma": nums(v.MA), "window": v.Window, "mean": num(v.Mean), "sd": num(v.SD), "min": num(v.Min), "max": num(v.Max)}
	default:
		return nil
	}
}

func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nums(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = num(v)
	}
	return out
}

func maxLabelWidth(labels []string) int {
	max := 0
	for _, label := range labels {
		if label == "" {
			continue
		}
		width := len(label) + 1
		if width > max {
			max = width
		}
	}
	return max
}

func formatStatusLine(label, value string, labelWidth int) string {
	if labelWidth <= 0 {
		labelWidth = len(label) + 1
	}
	if strings.TrimSpace(value) == "" {
		value = "unknown"
	}
	return fmt.Sprintf("%-*s %s", labelWidth, label+":", value)
}

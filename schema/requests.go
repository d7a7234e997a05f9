package schema

// CreatePanelRequest creates a new panel.
type CreatePanelRequest struct {
	PanelID    PanelID
	Kind       PanelKind
	Source     string
	Parameters Parameters
}

// CreatePanelResponse returns the created panel.
type CreatePanelResponse struct {
	Panel PanelSnapshot
}

// ClosePanelRequest closes a panel.
type ClosePanelRequest struct {
	PanelID PanelID
}

// ClosePanelResponse returns the closed panel.
type ClosePanelResponse struct {
	Panel PanelSnapshot
}

// ListPanelsRequest lists panels.
type ListPanelsRequest struct{}

// ListPanelsResponse returns panels in creation order.
type ListPanelsResponse struct {
	Panels []PanelSnapshot
}

// GetPanelRequest fetches a single panel.
type GetPanelRequest struct {
	PanelID PanelID
}

// GetPanelResponse returns a panel snapshot.
type GetPanelResponse struct {
	Panel PanelSnapshot
}

// SetSourceRequest replaces the user-editable source without running it.
type SetSourceRequest struct {
	PanelID PanelID
	Source  string
}

// SetSourceResponse returns the updated panel.
type SetSourceResponse struct {
	Panel PanelSnapshot
}

// ResetSourceRequest restores the panel's default source.
type ResetSourceRequest struct {
	PanelID PanelID
}

// ResetSourceResponse returns the updated panel.
type ResetSourceResponse struct {
	Panel PanelSnapshot
}

// SubmitSourceRequest replaces the source and schedules a debounced run.
type SubmitSourceRequest struct {
	PanelID PanelID
	Source  string
}

// SubmitSourceResponse returns the scheduled token.
type SubmitSourceResponse struct {
	Token RunToken
}

// SetParameterRequest changes a parameter and schedules a debounced run.
type SetParameterRequest struct {
	PanelID PanelID
	Name    string
	Value   float64
}

// SetParameterResponse returns the normalized value and the scheduled token.
type SetParameterResponse struct {
	Value float64
	Token RunToken
}

// RunRequest triggers an immediate run.
type RunRequest struct {
	PanelID PanelID
}

// RunResponse returns the update produced by the run. Published is false when
// a newer run superseded this one.
type RunResponse struct {
	Update    PanelUpdate
	Published bool
}

// RegenerateRequest regenerates data and runs immediately.
type RegenerateRequest struct {
	PanelID PanelID
}

// BootRequest runs the listed panels with the boot reason.
type BootRequest struct {
	PanelIDs []PanelID
}

// BootResponse returns one update per booted panel, in request order.
type BootResponse struct {
	Updates []PanelUpdate
}

// GetHistoryRequest fetches a panel's submitted-source history.
type GetHistoryRequest struct {
	PanelID PanelID
}

// GetHistoryResponse returns history entries oldest first.
type GetHistoryResponse struct {
	Entries []string
}

// GetConsoleRequest fetches a panel's console transcript.
type GetConsoleRequest struct {
	PanelID PanelID
	// Limit bounds the number of trailing lines returned; zero returns all.
	Limit int
}

// GetConsoleResponse returns the trailing transcript lines.
type GetConsoleResponse struct {
	Lines      []string
	TotalLines int
}

package domain

// Actor identifies the agent and organization a request acts on behalf of.
// It is passed explicitly into every retrieval call rather than inferred
// from ambient session state.
type Actor struct {
	AgentID string
	OrgID   string
}

// KnowledgeBase is a named collection of documents owned by one agent. Its
// title is used for citation labels in retrieved context.
type KnowledgeBase struct {
	ID      string
	OrgID   string
	AgentID string
	Title   string
}

// AgentProfile holds the per-agent configuration this core reads: knowledge
// base membership is resolved separately, the threshold drives flagging.
type AgentProfile struct {
	AgentID string
	OrgID   string
	// ConfidenceThreshold is in [0,1]; answers scoring strictly below it are
	// flagged for review. Range validation is the agent-configuration
	// service's responsibility.
	ConfidenceThreshold float64
	// ReviewerID is the human agronomist flagged interactions are routed to
	ReviewerID string
}

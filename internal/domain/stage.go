package domain

// ConversationStage identifies where the surrounding dialogue currently is.
// The retrieval context budget is keyed by stage.
type ConversationStage string

const (
	StageGreeting          ConversationStage = "greeting"
	StageDiscovery         ConversationStage = "discovery"
	StagePresentation      ConversationStage = "presentation"
	StageObjectionHandling ConversationStage = "objection_handling"
	StageClosing           ConversationStage = "closing"
)

// ContextBudget is the token/document ceiling for retrieved evidence at a
// given stage. Budgets are configuration data, constant per stage, and
// read-only to every pipeline component.
type ContextBudget struct {
	MaxTokens    int `yaml:"max_tokens"`
	MaxDocuments int `yaml:"max_documents"`
}

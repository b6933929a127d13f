package usecase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"retrieval-orchestrator/internal/domain"
)

// TokenEstimator estimates the token cost of a document's text. Pluggable so
// callers can substitute a real tokenizer.
type TokenEstimator func(text string) int

// EstimateTokens is the default estimator: roughly four characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

// StageBudgets maps conversation stages to their context budgets.
type StageBudgets map[domain.ConversationStage]domain.ContextBudget

// DefaultStageBudgets returns the built-in budget table. Presentation gets
// the largest budget; greeting and closing barely need evidence.
func DefaultStageBudgets() StageBudgets {
	return StageBudgets{
		domain.StageGreeting:          {MaxTokens: 256, MaxDocuments: 1},
		domain.StageDiscovery:         {MaxTokens: 1024, MaxDocuments: 3},
		domain.StagePresentation:      {MaxTokens: 2048, MaxDocuments: 5},
		domain.StageObjectionHandling: {MaxTokens: 1536, MaxDocuments: 4},
		domain.StageClosing:           {MaxTokens: 512, MaxDocuments: 2},
	}
}

// LoadStageBudgets reads a stage budget table from a YAML file keyed by
// stage name.
func LoadStageBudgets(path string) (StageBudgets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage budgets file: %w", err)
	}
	var raw map[string]domain.ContextBudget
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse stage budgets file: %w", err)
	}
	budgets := make(StageBudgets, len(raw))
	for stage, budget := range raw {
		if budget.MaxTokens <= 0 || budget.MaxDocuments <= 0 {
			return nil, fmt.Errorf("stage %q budget must be positive, got %+v", stage, budget)
		}
		budgets[domain.ConversationStage(stage)] = budget
	}
	return budgets, nil
}

// BudgetManager derives per-stage context budgets and selects the documents
// that survive into the final answer.
type BudgetManager struct {
	budgets  StageBudgets
	estimate TokenEstimator
}

// NewBudgetManager creates a BudgetManager. Nil arguments fall back to the
// built-in table and the default estimator.
func NewBudgetManager(budgets StageBudgets, estimate TokenEstimator) *BudgetManager {
	if budgets == nil {
		budgets = DefaultStageBudgets()
	}
	if estimate == nil {
		estimate = EstimateTokens
	}
	return &BudgetManager{budgets: budgets, estimate: estimate}
}

// BudgetFor returns the budget for a stage. Unknown stages get the
// presentation budget so an unmapped stage never starves retrieval.
func (m *BudgetManager) BudgetFor(stage domain.ConversationStage) domain.ContextBudget {
	if b, ok := m.budgets[stage]; ok {
		return b
	}
	return m.budgets[domain.StagePresentation]
}

// Select greedily takes documents in their given order, accumulating
// estimated tokens, until adding the next document would exceed MaxTokens or
// MaxDocuments. It never reorders and never partially includes a document.
func (m *BudgetManager) Select(documents []domain.Document, budget domain.ContextBudget) []domain.Document {
	selected := make([]domain.Document, 0, min(len(documents), budget.MaxDocuments))
	usedTokens := 0
	for _, doc := range documents {
		if len(selected) >= budget.MaxDocuments {
			break
		}
		cost := m.estimate(doc.Text)
		if usedTokens+cost > budget.MaxTokens {
			break
		}
		selected = append(selected, doc)
		usedTokens += cost
	}
	return selected
}

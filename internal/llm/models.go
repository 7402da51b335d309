package llm

// ModelInfo describes one entry of the static model catalog.
type ModelInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Tier  string `json:"tier"` // "free" or "premium"
}

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// ModelIDs fixes the catalog order used for UI enumeration.
var ModelIDs = []string{
	"mistralai/mistral-7b-instruct:free",
	"google/gemma-7b-it:free",
	"meta-llama/llama-3-8b-instruct:free",
	"huggingface/zephyr-7b-beta:free",
	"openchat/openchat-7b:free",
	"openai/gpt-4o",
	"openai/gpt-4o-mini",
	"anthropic/claude-3.5-sonnet",
	"anthropic/claude-3-haiku",
	"google/gemini-pro",
	"mistralai/mistral-large",
	"mistralai/codestral",
}

var models = map[string]ModelInfo{
	"mistralai/mistral-7b-instruct:free":  {ID: "mistralai/mistral-7b-instruct:free", Label: "Mistral 7B (Free)", Tier: TierFree},
	"google/gemma-7b-it:free":             {ID: "google/gemma-7b-it:free", Label: "Google Gemma 7B (Free)", Tier: TierFree},
	"meta-llama/llama-3-8b-instruct:free": {ID: "meta-llama/llama-3-8b-instruct:free", Label: "Llama 3 8B (Free)", Tier: TierFree},
	"huggingface/zephyr-7b-beta:free":     {ID: "huggingface/zephyr-7b-beta:free", Label: "Zephyr 7B (Free)", Tier: TierFree},
	"openchat/openchat-7b:free":           {ID: "openchat/openchat-7b:free", Label: "OpenChat 7B (Free)", Tier: TierFree},
	"openai/gpt-4o":                       {ID: "openai/gpt-4o", Label: "GPT-4o (Premium)", Tier: TierPremium},
	"openai/gpt-4o-mini":                  {ID: "openai/gpt-4o-mini", Label: "GPT-4o Mini (Premium)", Tier: TierPremium},
	"anthropic/claude-3.5-sonnet":         {ID: "anthropic/claude-3.5-sonnet", Label: "Claude 3.5 Sonnet (Premium)", Tier: TierPremium},
	"anthropic/claude-3-haiku":            {ID: "anthropic/claude-3-haiku", Label: "Claude 3 Haiku (Premium)", Tier: TierPremium},
	"google/gemini-pro":                   {ID: "google/gemini-pro", Label: "Gemini Pro (Premium)", Tier: TierPremium},
	"mistralai/mistral-large":             {ID: "mistralai/mistral-large", Label: "Mistral Large (Premium)", Tier: TierPremium},
	"mistralai/codestral":                 {ID: "mistralai/codestral", Label: "Codestral (Premium)", Tier: TierPremium},
}

// DefaultModelID is the model a fresh session starts with.
const DefaultModelID = "mistralai/mistral-7b-instruct:free"

// LookupModel returns catalog info for id.
func LookupModel(id string) (ModelInfo, bool) {
	m, ok := models[id]
	return m, ok
}

// ListModels returns the catalog in fixed order.
func ListModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(ModelIDs))
	for _, id := range ModelIDs {
		out = append(out, models[id])
	}
	return out
}

// FreeModelIDs returns the free-tier entries in catalog order.
func FreeModelIDs() []string {
	var out []string
	for _, id := range ModelIDs {
		if models[id].Tier == TierFree {
			out = append(out, id)
		}
	}
	return out
}

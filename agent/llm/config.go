package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	openrouterx "github.com/hyomin-dev/leadscout/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"4000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ListerModel        string  `envconfig:"LISTER_MODEL" split_words:"true"`
	FinderModel        string  `envconfig:"FINDER_MODEL" split_words:"true"`
	DrafterModel       string  `envconfig:"DRAFTER_MODEL" split_words:"true"`
	ListerTemperature  float32 `envconfig:"LISTER_TEMPERATURE" split_words:"true" default:"-1"`
	FinderTemperature  float32 `envconfig:"FINDER_TEMPERATURE" split_words:"true" default:"-1"`
	DrafterTemperature float32 `envconfig:"DRAFTER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model and temperature for one agent role,
// falling back to the shared defaults when no override is set.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeLister:
		if v := strings.TrimSpace(c.ListerModel); v != "" {
			modelName = v
		}
		if c.ListerTemperature >= 0 {
			temp = c.ListerTemperature
		}
	case contractx.AgentTypeFinder:
		if v := strings.TrimSpace(c.FinderModel); v != "" {
			modelName = v
		}
		if c.FinderTemperature >= 0 {
			temp = c.FinderTemperature
		}
	case contractx.AgentTypeDrafter:
		if v := strings.TrimSpace(c.DrafterModel); v != "" {
			modelName = v
		}
		if c.DrafterTemperature >= 0 {
			temp = c.DrafterTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

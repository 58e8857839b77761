package agent

import (
	"github.com/polisai/realm-finder/pkg/config"
)

// ProtocolVersion is the A2A protocol version advertised in the card.
const ProtocolVersion = "0.3.0"

// Card is the agent's self-description.
type Card struct {
	Name                              string       `json:"name"`
	Description                       string       `json:"description"`
	URL                               string       `json:"url"`
	Version                           string       `json:"version"`
	ProtocolVersion                   string       `json:"protocolVersion"`
	PreferredTransport                string       `json:"preferredTransport"`
	DefaultInputModes                 []string     `json:"defaultInputModes"`
	DefaultOutputModes                []string     `json:"defaultOutputModes"`
	Capabilities                      Capabilities `json:"capabilities"`
	Skills                            []Skill      `json:"skills"`
	SupportsAuthenticatedExtendedCard bool         `json:"supportsAuthenticatedExtendedCard"`
}

// Capabilities lists optional protocol features.
type Capabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// Skill is one advertised agent skill.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

// NewCard builds the card from configuration. The base URL is copied
// verbatim.
func NewCard(cfg *config.AgentConfig) *Card {
	skills := make([]Skill, 0, len(cfg.Skills))
	for _, s := range cfg.Skills {
		skills = append(skills, Skill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        append([]string{}, s.Tags...),
			Examples:    append([]string(nil), s.Examples...),
		})
	}

	return &Card{
		Name:               cfg.Name,
		Description:        cfg.Description,
		URL:                cfg.BaseURL,
		Version:            cfg.Version,
		ProtocolVersion:    ProtocolVersion,
		PreferredTransport: "JSONRPC",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities: Capabilities{
			Streaming: cfg.Streaming,
		},
		Skills: skills,
	}
}

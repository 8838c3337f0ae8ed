// Package analytics reports opt-in command usage to Segment.
package analytics

import (
	analytics "github.com/segmentio/analytics-go"
	log "github.com/sirupsen/logrus"
)

// Client is a convenience wrapper an analytics-go Client. A zero value
// client will no-op all its methods
type Client struct {
	client analytics.Client

	// global properties
	UserId         string
	KeyringBackend string
	Provider       string
	Version        string
}

// New creates a new Client. Global properties should be set on returned Client.
func New(writeKey string) Client {
	cl, err := analytics.NewWithConfig(writeKey, analytics.Config{
		BatchSize: 1,
	})
	if err != nil {
		log.Debugf("analytics disabled: %s", err)
		return Client{}
	}
	return Client{
		client: cl,
	}
}

const (
	TraitVersion = "figgy-version"

	PropertyVersion        = "figgy-version"
	PropertyKeyringBackend = "backend"
	PropertyProvider       = "provider"

	EventRanCommand     = "Ran Command"
	PropertyCommandName = "command"
	PropertyEnv         = "env"
	PropertyRole        = "role"
)

var AllProperties = map[string]struct{}{
	PropertyVersion:        {},
	PropertyKeyringBackend: {},
	PropertyProvider:       {},
	PropertyCommandName:    {},
	PropertyEnv:            {},
	PropertyRole:           {},
}

// Enabled reports whether events are sent anywhere.
func (a Client) Enabled() bool {
	return a.client != nil
}

func (a Client) Identify() {
	if a.client == nil {
		return
	}
	a.client.Enqueue(analytics.Identify{
		UserId: a.UserId,
		Traits: analytics.NewTraits().
			Set(TraitVersion, a.Version),
	})
}

func (a Client) TrackRanCommand(commandName string, extraProps ...[2]string) {
	if a.client == nil {
		return
	}
	props := analytics.NewProperties().
		Set(PropertyKeyringBackend, a.KeyringBackend).
		Set(PropertyProvider, a.Provider).
		Set(PropertyVersion, a.Version).
		Set(PropertyCommandName, commandName)
	for _, p := range extraProps {
		k := p[0]
		v := p[1]

		if _, ok := AllProperties[k]; !ok {
			log.Warnf("dropping unknown analytics property %s", k)
			continue
		}
		props.Set(k, v)
	}
	a.client.Enqueue(analytics.Track{
		UserId:     a.UserId,
		Event:      EventRanCommand,
		Properties: props,
	})
}

func (a Client) Close() {
	if a.client == nil {
		return
	}
	a.client.Close()
}

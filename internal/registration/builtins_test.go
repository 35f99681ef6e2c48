package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
	"github.com/tjfontaine/polyglot-connectors/internal/pkg/config"
)

func TestRegisterBuiltins(t *testing.T) {
	connector.ClearFactories()
	t.Cleanup(connector.ClearFactories)

	RegisterBuiltins()
	// Registration is idempotent.
	RegisterBuiltins()

	assert.Equal(t, []string{
		"adobesign", "airwatch", "dynamics", "linkedin", "salesforce", "servicenow", "zoom",
	}, connector.ListTypes())
}

func TestCreate_BuiltinDescriptors(t *testing.T) {
	connector.ClearFactories()
	t.Cleanup(connector.ClearFactories)
	RegisterBuiltins()

	cfg := &config.Config{AirWatch: config.AirWatchConfig{
		TenantCode: "T1",
		Apps:       []config.AirWatchApp{{Name: "Boxer", Platform: "Apple", Keywords: []string{"boxer"}}},
	}}

	for _, tc := range []struct {
		typ        string
		objectType string
	}{
		{"servicenow", connector.ObjectTypeCard},
		{"salesforce", connector.ObjectTypeCard},
		{"adobesign", connector.ObjectTypeCard},
		{"zoom", connector.ObjectTypeCard},
		{"airwatch", connector.ObjectTypeCard},
		{"dynamics", connector.ObjectTypeBotDiscovery},
		{"linkedin", connector.ObjectTypeBotDiscovery},
	} {
		t.Run(tc.typ, func(t *testing.T) {
			c, err := connector.Create(tc.typ, connector.Deps{Config: cfg})
			require.NoError(t, err)
			assert.Equal(t, tc.typ, c.Name())
			assert.Equal(t, tc.objectType, c.Descriptor().ObjectType)
		})
	}
}

func TestCreate_AirWatchNeedsTenant(t *testing.T) {
	connector.ClearFactories()
	t.Cleanup(connector.ClearFactories)
	RegisterBuiltins()

	_, err := connector.Create("airwatch", connector.Deps{Config: &config.Config{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid airwatch configuration")
}

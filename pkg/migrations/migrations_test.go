package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ups, err := Load("up")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	downs, err := Load("down")
	require.NoError(t, err)
	assert.Len(t, downs, len(ups), "every up migration needs a down")

	t.Run("sorted by version", func(t *testing.T) {
		for i := 1; i < len(ups); i++ {
			assert.Less(t, ups[i-1].Version, ups[i].Version)
		}
	})

	t.Run("filename parsing", func(t *testing.T) {
		first := ups[0]
		assert.Equal(t, "000001", first.Version)
		assert.Equal(t, "init", first.Name)
		assert.Equal(t, "up", first.Direction)
		assert.Equal(t, "000001_init.up.sql", first.String())
	})

	t.Run("matching versions both directions", func(t *testing.T) {
		downSet := make(map[string]bool, len(downs))
		for _, m := range downs {
			downSet[m.Version] = true
		}
		for _, m := range ups {
			assert.True(t, downSet[m.Version], "missing down for %s", m.Version)
		}
	})
}

func TestContent(t *testing.T) {
	ups, err := Load("up")
	require.NoError(t, err)

	for _, m := range ups {
		content, err := Content(m)
		require.NoError(t, err, "read %s", m)
		assert.NotEmpty(t, content)
	}

	t.Run("initial schema creates core tables", func(t *testing.T) {
		content, err := Content(ups[0])
		require.NoError(t, err)

		sql := string(content)
		for _, table := range []string{"projects", "scans", "findings", "finding_history", "licenses", "policies", "policy_rules"} {
			assert.True(t, strings.Contains(sql, table), "schema missing table %s", table)
		}
	})
}

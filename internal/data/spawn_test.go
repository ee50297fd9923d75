package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/core/ecs"
)

const spawnList = `
- name: slime
  count: 3
  hp: 10
  regen:
    amount: 1
    interval: 5
- name: scorpion
  hp: 8
  max_hp: 12
  lifetime: 20
  poison:
    damage: 2
    ticks: 3
`

func TestLoadSpawnTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawn_list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(spawnList), 0o644))

	table, err := LoadSpawnTable(path)
	require.NoError(t, err)
	require.Len(t, table.Entries(), 2)
	assert.Equal(t, 4, table.Count())
	assert.Equal(t, int32(10), table.Entries()[0].MaxHP)
	assert.Equal(t, 1, table.Entries()[1].Count)
}

func TestSpawnCreatesComponents(t *testing.T) {
	table, err := ParseSpawnTable([]byte(spawnList))
	require.NoError(t, err)

	w := ecs.NewWorld()
	ids, err := table.Spawn(w)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, 4, w.Len())

	slimes := w.Query(ecs.MatchAll(ecs.ComponentOf[component.Regen]()))
	assert.Equal(t, 3, slimes.Count())

	scorpion := ids[3]
	h, ok := ecs.Get[component.Health](w, scorpion)
	require.True(t, ok)
	assert.Equal(t, component.Health{HP: 8, MaxHP: 12}, *h)
	assert.True(t, ecs.Has[component.Poison](w, scorpion))
	assert.True(t, ecs.Has[component.Lifetime](w, scorpion))
	assert.False(t, ecs.Has[component.Regen](w, scorpion))
}

func TestParseSpawnTableRejectsBadEntries(t *testing.T) {
	_, err := ParseSpawnTable([]byte("- count: 2\n"))
	assert.ErrorContains(t, err, "missing name")

	_, err = ParseSpawnTable([]byte("- name: x\n  hp: 5\n  max_hp: 3\n"))
	assert.ErrorContains(t, err, "above max_hp")

	_, err = LoadSpawnTable(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

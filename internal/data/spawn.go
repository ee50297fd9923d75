package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/core/ecs"
)

// RegenEntry configures passive HP regeneration.
type RegenEntry struct {
	Amount   int32 `yaml:"amount"`
	Interval int32 `yaml:"interval"`
}

// PoisonEntry configures a poison applied at spawn.
type PoisonEntry struct {
	Damage int32 `yaml:"damage"`
	Ticks  int32 `yaml:"ticks"`
}

// SpawnEntry describes Count identical entities.
type SpawnEntry struct {
	Name     string       `yaml:"name"`
	Count    int          `yaml:"count"`
	HP       int32        `yaml:"hp"`
	MaxHP    int32        `yaml:"max_hp"`
	Lifetime int32        `yaml:"lifetime"` // ticks, 0 = forever
	Regen    *RegenEntry  `yaml:"regen"`
	Poison   *PoisonEntry `yaml:"poison"`
}

// SpawnTable is the list of entities created at startup.
type SpawnTable struct {
	entries []SpawnEntry
}

// LoadSpawnTable loads spawn_list.yaml.
func LoadSpawnTable(path string) (*SpawnTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	return ParseSpawnTable(raw)
}

// ParseSpawnTable parses a spawn list document.
func ParseSpawnTable(raw []byte) (*SpawnTable, error) {
	var entries []SpawnEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("spawn entry %d: missing name", i)
		}
		if e.Count <= 0 {
			e.Count = 1
		}
		if e.MaxHP == 0 {
			e.MaxHP = e.HP
		}
		if e.HP > e.MaxHP {
			return nil, fmt.Errorf("spawn entry %s: hp %d above max_hp %d", e.Name, e.HP, e.MaxHP)
		}
	}
	return &SpawnTable{entries: entries}, nil
}

// Entries returns the loaded entries.
func (t *SpawnTable) Entries() []SpawnEntry {
	return t.entries
}

// Count returns the total number of entities the table spawns.
func (t *SpawnTable) Count() int {
	n := 0
	for _, e := range t.entries {
		n += e.Count
	}
	return n
}

// Spawn creates every entity of the table in w.
func (t *SpawnTable) Spawn(w *ecs.World) ([]ecs.EntityID, error) {
	ids := make([]ecs.EntityID, 0, t.Count())
	for _, e := range t.entries {
		for i := 0; i < e.Count; i++ {
			id, err := spawnOne(w, e)
			if err != nil {
				return ids, fmt.Errorf("spawn %s: %w", e.Name, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func spawnOne(w *ecs.World, e SpawnEntry) (ecs.EntityID, error) {
	id := w.CreateEntity()
	if _, err := ecs.Add(w, id, component.Name{Value: e.Name}); err != nil {
		return id, err
	}
	if e.MaxHP > 0 {
		if _, err := ecs.Add(w, id, component.Health{HP: e.HP, MaxHP: e.MaxHP}); err != nil {
			return id, err
		}
	}
	if e.Lifetime > 0 {
		if _, err := ecs.Add(w, id, component.Lifetime{Ticks: e.Lifetime}); err != nil {
			return id, err
		}
	}
	if e.Regen != nil {
		if _, err := ecs.Add(w, id, component.Regen{Amount: e.Regen.Amount, Interval: e.Regen.Interval}); err != nil {
			return id, err
		}
	}
	if e.Poison != nil {
		if _, err := ecs.Add(w, id, component.Poison{Damage: e.Poison.Damage, Ticks: e.Poison.Ticks}); err != nil {
			return id, err
		}
	}
	return id, nil
}

package game_client

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	tableMonsters = "monsters"
	tableAvatars  = "avatars"
)

var IDIndex = &memdb.StringFieldIndex{
	Field: "ID",
}

var KindIndex = &memdb.StringFieldIndex{
	Field: "Kind",
}

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableMonsters: {
			Name: tableMonsters,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: IDIndex,
				},
			},
		},
		tableAvatars: {
			Name: tableAvatars,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: KindIndex,
				},
			},
		},
	},
}

type DB struct {
	db *memdb.MemDB
}

// Monster is the last known position of one monster. Stored values are never mutated.
type Monster struct {
	ID         string    `json:"id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Rotation   float64   `json:"rotation"`
	Updates    int       `json:"updates"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastUpdate time.Time `json:"lastUpdate"`
	// SeenAt is the local arrival time. Replayed packets keep their captured LastUpdate.
	SeenAt time.Time `json:"-"`
}

// Avatar is the single tracked position of the player or the local user.
type Avatar struct {
	Kind       string    `json:"kind"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Rotation   float64   `json:"rotation"`
	IsSpawn    bool      `json:"isSpawn"`
	LastUpdate time.Time `json:"lastUpdate"`
}

const (
	AvatarPlayer = "player"
	AvatarUser   = "user"
)

func newDB() (*DB, error) {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return nil, err
	}

	return &DB{db: db}, nil
}

// UpsertMonster replaces the monster record, keeping its first sighting time and update count.
func (d *DB) UpsertMonster(m Monster) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableMonsters, "id", m.ID)
	if err != nil {
		return err
	}

	m.FirstSeen = m.LastUpdate
	m.Updates = 1
	if old, ok := raw.(*Monster); ok {
		m.FirstSeen = old.FirstSeen
		m.Updates = old.Updates + 1
	}

	if err := txn.Insert(tableMonsters, &m); err != nil {
		return fmt.Errorf("failed inserting monster (%s): %w", m.ID, err)
	}

	txn.Commit()

	return nil
}

func (d *DB) SetAvatar(a Avatar) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tableAvatars, &a); err != nil {
		return fmt.Errorf("failed inserting %s: %w", a.Kind, err)
	}

	txn.Commit()

	return nil
}

func (d *DB) Avatar(kind string) (*Avatar, error) {
	txn := d.db.Txn(false)

	raw, err := txn.First(tableAvatars, "id", kind)
	if err != nil || raw == nil {
		return nil, err
	}

	a := *raw.(*Avatar)

	return &a, nil
}

func (d *DB) Monster(id string) (*Monster, error) {
	txn := d.db.Txn(false)

	raw, err := txn.First(tableMonsters, "id", id)
	if err != nil || raw == nil {
		return nil, err
	}

	m := *raw.(*Monster)

	return &m, nil
}

// Monsters returns every known monster ordered by id.
func (d *DB) Monsters() ([]Monster, error) {
	txn := d.db.Txn(false)

	it, err := txn.Get(tableMonsters, "id")
	if err != nil {
		return nil, err
	}

	var out []Monster
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*Monster))
	}

	return out, nil
}

// PruneMonsters drops monsters not seen locally since the cutoff and returns how many went.
func (d *DB) PruneMonsters(before time.Time) (int, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableMonsters, "id")
	if err != nil {
		return 0, err
	}

	var stale []*Monster
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if m := obj.(*Monster); m.SeenAt.Before(before) {
			stale = append(stale, m)
		}
	}

	for _, m := range stale {
		if err := txn.Delete(tableMonsters, m); err != nil {
			return 0, err
		}
	}

	txn.Commit()

	return len(stale), nil
}

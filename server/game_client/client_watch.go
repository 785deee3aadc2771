package game_client

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nomoresecretz/flymap/common/flyStruct"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var now = func() time.Time {
	return time.Now()
}

// GameClientWatch keeps the latest world state seen from the game client.
// It is safe for use by several sessions at once.
type GameClientWatch struct {
	db    *DB
	chats atomic.Uint64
}

func NewClientWatch() (*GameClientWatch, error) {
	db, err := newDB()
	if err != nil {
		return nil, fmt.Errorf("failed to create db: %w", err)
	}

	return &GameClientWatch{
		db: db,
	}, nil
}

func (c *GameClientWatch) DB() *DB {
	return c.db
}

func (c *GameClientWatch) OnMonsterPosition(e flyStruct.PositionEvent) {
	if e.ID == "" {
		return
	}

	err := c.db.UpsertMonster(Monster{
		ID:         e.ID,
		X:          e.X,
		Y:          e.Y,
		Z:          e.Z,
		Rotation:   e.Rotation,
		LastUpdate: e.ObservedAt,
		SeenAt:     now(),
	})
	if err != nil {
		logger().Error().Err(err).Str("monster", e.ID).Msg("monster update failed")
	}
}

func (c *GameClientWatch) OnPlayerPosition(e flyStruct.PositionEvent) {
	c.setAvatar(AvatarPlayer, e)
}

func (c *GameClientWatch) OnUserPosition(e flyStruct.PositionEvent) {
	c.setAvatar(AvatarUser, e)
}

func (c *GameClientWatch) OnChatMessage(e flyStruct.ChatEvent) {
	c.chats.Add(1)
	logger().Info().Str("direction", e.Direction.String()).Str("message", e.Message).Msg("chat")
}

func (c *GameClientWatch) setAvatar(kind string, e flyStruct.PositionEvent) {
	err := c.db.SetAvatar(Avatar{
		Kind:       kind,
		X:          e.X,
		Y:          e.Y,
		Z:          e.Z,
		Rotation:   e.Rotation,
		IsSpawn:    e.IsSpawn,
		LastUpdate: e.ObservedAt,
	})
	if err != nil {
		logger().Error().Err(err).Msg("avatar update failed")
	}
}

// MonsterRow is a monster with its map offset from the player.
type MonsterRow struct {
	Monster
	MapX float64 `json:"mapX"`
	MapY float64 `json:"mapY"`
}

type Snapshot struct {
	Player   *Avatar      `json:"player"`
	User     *Avatar      `json:"user"`
	Monsters []MonsterRow `json:"monsters"`
	Chats    uint64       `json:"chats"`
	Taken    time.Time    `json:"taken"`
}

// Snapshot returns a consistent copy of the current state. Map offsets are taken on the
// horizontal plane, so MapY is the depth difference.
func (c *GameClientWatch) Snapshot() (*Snapshot, error) {
	player, err := c.db.Avatar(AvatarPlayer)
	if err != nil {
		return nil, err
	}

	user, err := c.db.Avatar(AvatarUser)
	if err != nil {
		return nil, err
	}

	ms, err := c.db.Monsters()
	if err != nil {
		return nil, err
	}

	var px, pz float64
	if player != nil {
		px, pz = player.X, player.Z
	}

	rows := make([]MonsterRow, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, MonsterRow{
			Monster: m,
			MapX:    m.X - px,
			MapY:    m.Z - pz,
		})
	}

	return &Snapshot{
		Player:   player,
		User:     user,
		Monsters: rows,
		Chats:    c.chats.Load(),
		Taken:    now(),
	}, nil
}

// Prune drops monsters unseen for longer than maxAge.
func (c *GameClientWatch) Prune(maxAge time.Duration) {
	n, err := c.db.PruneMonsters(now().Add(-maxAge))
	if err != nil {
		logger().Error().Err(err).Msg("prune failed")
		return
	}

	if n > 0 {
		logger().Debug().Int("monsters", n).Msg("pruned stale monsters")
	}
}

// logger is resolved per call so it follows later changes to the global logger.
func logger() *zerolog.Logger {
	l := log.With().Str("component", "watch").Logger()
	return &l
}

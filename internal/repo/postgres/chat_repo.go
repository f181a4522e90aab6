package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

const (
	roomColumns    = `id, match_id, vessel_low_id, vessel_high_id, last_message_at, is_active, created_at`
	messageColumns = `id, room_id, sender_user_id, sender_vessel_id, content, type, created_at, read_by`
)

type ChatRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewChatRepo(pool *pgxpool.Pool, retry RetryPolicy) *ChatRepo {
	return &ChatRepo{pool: pool, retry: retry}
}

// EnsureRoom inserts the room for the vessel pair or returns the existing one.
func (r *ChatRepo) EnsureRoom(ctx context.Context, room model.ChatRoom) (model.ChatRoom, error) {
	if len(room.Participants) != 2 {
		return model.ChatRoom{}, fmt.Errorf("ensure room: need two participants")
	}
	lo, hi := model.OrderedPair(room.Participants[0], room.Participants[1])
	createdAt := room.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	out, err := scanRoom(r.pool.QueryRow(ctx, `
INSERT INTO chat_rooms (
	match_id,
	vessel_low_id,
	vessel_high_id,
	is_active,
	created_at
) VALUES ($1, $2, $3, TRUE, $4)
ON CONFLICT ON CONSTRAINT chat_rooms_pair_key DO UPDATE SET
	vessel_low_id = chat_rooms.vessel_low_id
RETURNING `+roomColumns, room.MatchID, lo, hi, createdAt))
	if err != nil {
		return model.ChatRoom{}, fmt.Errorf("ensure room: %w", err)
	}
	return out, nil
}

func (r *ChatRepo) GetRoomByPair(ctx context.Context, a, b int64) (model.ChatRoom, error) {
	lo, hi := model.OrderedPair(a, b)
	var out model.ChatRoom
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		out, err = scanRoom(r.pool.QueryRow(ctx, `
SELECT `+roomColumns+`
FROM chat_rooms
WHERE vessel_low_id = $1 AND vessel_high_id = $2
`, lo, hi))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ChatRoom{}, repo.ErrNotFound
		}
		return model.ChatRoom{}, fmt.Errorf("get room by pair: %w", err)
	}
	return out, nil
}

// AppendMessage stores msg and advances the room's last_message_at in one
// transaction. Inactive rooms reject writes.
func (r *ChatRepo) AppendMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	var out model.Message
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM chat_rooms WHERE id = $1 FOR UPDATE`, msg.RoomID).Scan(&active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repo.ErrNotFound
			}
			return fmt.Errorf("lock room: %w", err)
		}
		if !active {
			return repo.ErrInactive
		}

		readBy := msg.ReadBy
		if readBy == nil {
			readBy = []int64{}
		}
		out, err = scanMessage(tx.QueryRow(ctx, `
INSERT INTO messages (
	room_id,
	sender_user_id,
	sender_vessel_id,
	content,
	type,
	read_by,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+messageColumns,
			msg.RoomID, msg.SenderUserID, msg.SenderVesselID, msg.Content, string(msg.Type), readBy, msg.CreatedAt.UTC()))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE chat_rooms
SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
WHERE id = $1
`, msg.RoomID, out.CreatedAt); err != nil {
			return fmt.Errorf("touch room: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// MarkMessageRead adds vesselID to the read set once; the set never shrinks.
func (r *ChatRepo) MarkMessageRead(ctx context.Context, roomID, messageID, vesselID int64) (model.Message, error) {
	out, err := scanMessage(r.pool.QueryRow(ctx, `
UPDATE messages
SET read_by = CASE
	WHEN $3 = ANY(read_by) THEN read_by
	ELSE array_append(read_by, $3::bigint)
END
WHERE id = $2 AND room_id = $1
RETURNING `+messageColumns, roomID, messageID, vesselID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, repo.ErrNotFound
		}
		return model.Message{}, fmt.Errorf("mark message read: %w", err)
	}
	return out, nil
}

// ListMessages pages a room in (created_at, id) order. An unknown afterID
// yields no rows.
func (r *ChatRepo) ListMessages(ctx context.Context, roomID, afterID int64, limit int) ([]model.Message, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	query := `
SELECT ` + messageColumns + `
FROM messages
WHERE room_id = $1
ORDER BY created_at, id
LIMIT $2
`
	args := []any{roomID, lim}
	if afterID > 0 {
		query = `
SELECT ` + messageColumns + `
FROM messages
WHERE room_id = $1
  AND (created_at, id) > (SELECT created_at, id FROM messages WHERE id = $3 AND room_id = $1)
ORDER BY created_at, id
LIMIT $2
`
		args = append(args, afterID)
	}

	var out []model.Message
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

// ListConversations returns MATCHED rows liked by any of vesselIDs with the
// pair's room, latest message and unread count for the liker.
func (r *ChatRepo) ListConversations(ctx context.Context, vesselIDs []int64) ([]model.Conversation, error) {
	out := []model.Conversation{}
	if len(vesselIDs) == 0 {
		return out, nil
	}

	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, `
SELECT
	m.id, m.liker_vessel_id, m.liked_vessel_id, m.status, m.matched_at, m.expires_at, m.created_at,
	r.id, r.match_id, r.vessel_low_id, r.vessel_high_id, r.last_message_at, r.is_active, r.created_at,
	lm.id, lm.sender_user_id, lm.sender_vessel_id, lm.content, lm.type, lm.created_at, lm.read_by,
	COALESCE(unread.n, 0)
FROM matches m
LEFT JOIN chat_rooms r
	ON r.vessel_low_id = LEAST(m.liker_vessel_id, m.liked_vessel_id)
   AND r.vessel_high_id = GREATEST(m.liker_vessel_id, m.liked_vessel_id)
LEFT JOIN LATERAL (
	SELECT id, sender_user_id, sender_vessel_id, content, type, created_at, read_by
	FROM messages
	WHERE room_id = r.id
	ORDER BY created_at DESC, id DESC
	LIMIT 1
) lm ON TRUE
LEFT JOIN LATERAL (
	SELECT COUNT(*) AS n
	FROM messages
	WHERE room_id = r.id
	  AND sender_vessel_id <> m.liker_vessel_id
	  AND NOT (m.liker_vessel_id = ANY(read_by))
) unread ON TRUE
WHERE m.status = 'MATCHED'
  AND m.liker_vessel_id = ANY($1)
ORDER BY COALESCE(r.last_message_at, m.matched_at, m.created_at) DESC, m.id DESC
`, vesselIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			conv, err := scanConversation(rows)
			if err != nil {
				return err
			}
			out = append(out, conv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func scanConversation(row pgx.Row) (model.Conversation, error) {
	var (
		c           model.Conversation
		matchStatus string

		roomID, roomMatchID, low, high *int64
		lastMessageAt, roomCreatedAt   *time.Time
		roomActive                     *bool

		msgID, senderUserID, senderVesselID *int64
		content, msgType                    *string
		msgCreatedAt                        *time.Time
		readBy                              []int64
		unread                              int64
	)
	if err := row.Scan(
		&c.Match.ID, &c.Match.LikerVesselID, &c.Match.LikedVesselID, &matchStatus,
		&c.Match.MatchedAt, &c.Match.ExpiresAt, &c.Match.CreatedAt,
		&roomID, &roomMatchID, &low, &high, &lastMessageAt, &roomActive, &roomCreatedAt,
		&msgID, &senderUserID, &senderVesselID, &content, &msgType, &msgCreatedAt, &readBy,
		&unread,
	); err != nil {
		return model.Conversation{}, err
	}
	c.Match.Status = enums.MatchStatus(matchStatus)
	c.UnreadCount = int(unread)

	if roomID != nil {
		c.Room = &model.ChatRoom{
			ID:            *roomID,
			MatchID:       *roomMatchID,
			Participants:  []int64{*low, *high},
			LastMessageAt: lastMessageAt,
			Active:        *roomActive,
			CreatedAt:     *roomCreatedAt,
		}
	}
	if msgID != nil {
		c.LastMessage = &model.Message{
			ID:             *msgID,
			RoomID:         *roomID,
			SenderUserID:   *senderUserID,
			SenderVesselID: *senderVesselID,
			Content:        *content,
			Type:           enums.MessageType(*msgType),
			CreatedAt:      *msgCreatedAt,
			ReadBy:         readBy,
		}
	}
	return c, nil
}

func scanRoom(row pgx.Row) (model.ChatRoom, error) {
	var (
		room      model.ChatRoom
		low, high int64
	)
	if err := row.Scan(
		&room.ID,
		&room.MatchID,
		&low,
		&high,
		&room.LastMessageAt,
		&room.Active,
		&room.CreatedAt,
	); err != nil {
		return model.ChatRoom{}, err
	}
	room.Participants = []int64{low, high}
	return room, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var (
		m       model.Message
		msgType string
	)
	if err := row.Scan(
		&m.ID,
		&m.RoomID,
		&m.SenderUserID,
		&m.SenderVesselID,
		&m.Content,
		&msgType,
		&m.CreatedAt,
		&m.ReadBy,
	); err != nil {
		return model.Message{}, err
	}
	m.Type = enums.MessageType(msgType)
	return m, nil
}

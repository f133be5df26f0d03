package store

import (
	"database/sql"
	"fmt"
	"time"

	"codetrail/internal/model"
	"codetrail/internal/pricing"
)

// MessageCreate carries one incoming message turn.
type MessageCreate struct {
	SessionID    string
	UUID         *string
	Type         model.MessageType
	Content      *string
	Model        *string
	InputTokens  *int64
	OutputTokens *int64
	Timestamp    time.Time // zero means "now"
}

// uuidConflict selects what happens when a message's uuid already exists.
type uuidConflict int

const (
	conflictUpdate uuidConflict = iota // refresh content/model/token/cost fields
	conflictIgnore                     // keep the stored row untouched
)

const messageColumns = `id, session_id, uuid, type, content, model,
	input_tokens, output_tokens, input_cost, output_cost, timestamp`

func scanMessage(row interface{ Scan(...any) error }) (model.Message, error) {
	var (
		m         model.Message
		uuid      sql.NullString
		content   sql.NullString
		modelName sql.NullString
		inTok     sql.NullInt64
		outTok    sql.NullInt64
		inCost    sql.NullFloat64
		outCost   sql.NullFloat64
		msgType   string
		ts        string
	)
	err := row.Scan(&m.ID, &m.SessionID, &uuid, &msgType, &content, &modelName,
		&inTok, &outTok, &inCost, &outCost, &ts)
	if err != nil {
		return model.Message{}, err
	}
	m.UUID = strPtr(uuid)
	m.Type = model.MessageType(msgType)
	m.Content = strPtr(content)
	m.Model = strPtr(modelName)
	m.InputTokens = intPtr(inTok)
	m.OutputTokens = intPtr(outTok)
	m.InputCost = floatPtr(inCost)
	m.OutputCost = floatPtr(outCost)
	m.Timestamp = parseTime(ts)
	return m, nil
}

// CreateMessage records one message turn. Cost is derived from current
// pricing at write time. A uuid collision updates the stored message
// instead of duplicating it; only a true insert is folded into today's
// daily aggregate.
func (s *Store) CreateMessage(data MessageCreate) (model.Message, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, data.SessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}

	id, _, err := s.insertMessageTx(tx, data, conflictUpdate)
	if err != nil {
		return model.Message{}, err
	}

	msg, err := scanMessage(tx.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		return model.Message{}, err
	}
	return msg, tx.Commit()
}

// GetMessages returns a session's messages in timestamp order.
func (s *Store) GetMessages(sessionID string) ([]model.Message, error) {
	rows, err := s.db.Query(
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? ORDER BY timestamp, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// insertMessageTx performs the uuid-keyed upsert and, on a true insert,
// the daily-stats increment. Returns the message row id and whether a new
// row was inserted.
func (s *Store) insertMessageTx(tx *sql.Tx, data MessageCreate, onConflict uuidConflict) (int64, bool, error) {
	cost, err := s.priceMessage(tx, data)
	if err != nil {
		return 0, false, err
	}

	ts := data.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	if data.UUID != nil {
		var existingID int64
		err := tx.QueryRow(`SELECT id FROM messages WHERE uuid = ?`, *data.UUID).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			// fall through to insert
		case err != nil:
			return 0, false, err
		case onConflict == conflictIgnore:
			return existingID, false, nil
		default:
			_, err = tx.Exec(
				`UPDATE messages SET content = ?, model = ?, input_tokens = ?, output_tokens = ?,
					input_cost = ?, output_cost = ?
				 WHERE id = ?`,
				nullString(data.Content), nullString(data.Model),
				nullInt(data.InputTokens), nullInt(data.OutputTokens),
				cost.input, cost.output, existingID,
			)
			if err != nil {
				return 0, false, fmt.Errorf("updating message: %w", err)
			}
			return existingID, false, nil
		}
	}

	res, err := tx.Exec(
		`INSERT INTO messages (session_id, uuid, type, content, model,
			input_tokens, output_tokens, input_cost, output_cost, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		data.SessionID, nullString(data.UUID), string(data.Type),
		nullString(data.Content), nullString(data.Model),
		nullInt(data.InputTokens), nullInt(data.OutputTokens),
		cost.input, cost.output, ts.Format(timeFormat),
	)
	if err != nil {
		return 0, false, fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}

	var inTok, outTok int64
	if data.InputTokens != nil {
		inTok = *data.InputTokens
	}
	if data.OutputTokens != nil {
		outTok = *data.OutputTokens
	}
	var inCost, outCost float64
	if v, ok := cost.input.(float64); ok {
		inCost = v
	}
	if v, ok := cost.output.(float64); ok {
		outCost = v
	}
	if err := bumpMessageStats(tx, s.today(), inTok, outTok, inCost, outCost); err != nil {
		return 0, false, err
	}

	return id, true, nil
}

// messageCost holds the priced sides of a message; nil means the cost
// column stays NULL because no token count was supplied.
type messageCost struct {
	input  any
	output any
}

// priceMessage prices the message from current pricing rows. Costs stay
// NULL when the corresponding token count is absent; an unrecognized
// model family prices as zero. A failed pricing read aborts the write —
// only a missing family degrades to zero cost.
func (s *Store) priceMessage(tx *sql.Tx, data MessageCreate) (messageCost, error) {
	var out messageCost
	if data.Model == nil || (data.InputTokens == nil && data.OutputTokens == nil) {
		return out, nil
	}

	var inTok, outTok int64
	if data.InputTokens != nil {
		inTok = *data.InputTokens
	}
	if data.OutputTokens != nil {
		outTok = *data.OutputTokens
	}

	rate, ok, err := lookupRateTx(tx, *data.Model)
	if err != nil {
		return out, fmt.Errorf("reading pricing: %w", err)
	}
	cost := pricing.Unknown()
	if ok {
		cost = pricing.Compute(inTok, outTok, rate)
	}

	if data.InputTokens != nil {
		out.input = cost.Input
	}
	if data.OutputTokens != nil {
		out.output = cost.Output
	}
	return out, nil
}

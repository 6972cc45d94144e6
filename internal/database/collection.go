package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type collection struct {
	store *Store
	name  string
}

func (c *collection) FindOne(ctx context.Context, filter Filter, out any) error {
	where, args, err := c.store.where(c.name, filter, 0)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT %s FROM documents WHERE %s ORDER BY seq LIMIT 1", c.store.dialect.body(), where)

	var body []byte
	if err := c.store.db.QueryRowContext(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoDocuments
		}
		return fmt.Errorf("find %s: %w", c.name, err)
	}
	return json.Unmarshal(body, out)
}

func (c *collection) FindMany(ctx context.Context, filter Filter, out any) error {
	return c.find(ctx, filter, "ORDER BY seq", out)
}

func (c *collection) FindLatest(ctx context.Context, filter Filter, limit int, out any) error {
	order := "ORDER BY seq DESC"
	if limit > 0 {
		order += fmt.Sprintf(" LIMIT %d", limit)
	}
	return c.find(ctx, filter, order, out)
}

func (c *collection) find(ctx context.Context, filter Filter, order string, out any) error {
	where, args, err := c.store.where(c.name, filter, 0)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT %s FROM documents WHERE %s %s", c.store.dialect.body(), where, order)

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("find %s: %w", c.name, err)
	}
	defer rows.Close()

	// Assemble a JSON array so out can be any slice type.
	var buf bytes.Buffer
	buf.WriteByte('[')
	for n := 0; rows.Next(); n++ {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return err
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(body)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), out)
}

func (c *collection) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := c.store.where(c.name, filter, 0)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

func (c *collection) InsertOne(ctx context.Context, doc any) (string, error) {
	fields, err := toFields(doc)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	fields["id"] = id
	body, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}

	d := c.store.dialect
	query := fmt.Sprintf("INSERT INTO documents (id, collection, body) VALUES (%s, %s, %s)",
		d.placeholder(1), d.placeholder(2), d.placeholder(3))
	if _, err := c.store.db.ExecContext(ctx, query, id, c.name, string(body)); err != nil {
		if d.isDuplicate(err) {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("insert %s: %w", c.name, err)
	}
	return id, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter Filter, set map[string]any) (int64, error) {
	patch := make(map[string]any, len(set))
	for k, v := range set {
		if k == "id" {
			continue
		}
		patch[k] = v
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return 0, err
	}

	d := c.store.dialect
	where, args, err := c.store.where(c.name, filter, 1)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(
		"UPDATE documents SET body = %s WHERE id = (SELECT id FROM documents WHERE %s ORDER BY seq LIMIT 1)",
		d.merge(d.placeholder(1)), where)
	res, err := c.store.db.ExecContext(ctx, query, append([]any{string(body)}, args...)...)
	if err != nil {
		if d.isDuplicate(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("update %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

func (c *collection) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := c.store.where(c.name, filter, 0)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM documents WHERE id = (SELECT id FROM documents WHERE %s ORDER BY seq LIMIT 1)", where)
	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

func (c *collection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := c.store.where(c.name, filter, 0)
	if err != nil {
		return 0, err
	}
	res, err := c.store.db.ExecContext(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

// toFields round-trips doc through JSON so struct tags decide the stored field names.
func toFields(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must encode as a JSON object: %w", err)
	}
	return fields, nil
}

package note

import "context"

// Saver adapts the client to the session's persister seam for a note the
// caller owns.
type Saver struct {
	c  *Client
	id int64
}

// Saver binds the client to one note id.
func (c *Client) Saver(id int64) *Saver {
	return &Saver{c: c, id: id}
}

func (s *Saver) Persist(ctx context.Context, title, content, category string) error {
	_, err := s.c.Update(ctx, s.id, Update{Title: title, Content: content, Category: category})
	return err
}

// SharedSaver is the share-link variant, keyed by token instead of id.
type SharedSaver struct {
	c     *Client
	token string
}

// SharedSaver binds the client to one share token.
func (c *Client) SharedSaver(token string) *SharedSaver {
	return &SharedSaver{c: c, token: token}
}

func (s *SharedSaver) Persist(ctx context.Context, title, content, category string) error {
	_, err := s.c.UpdateShared(ctx, s.token, Update{Title: title, Content: content, Category: category})
	return err
}

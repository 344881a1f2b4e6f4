package annotation

import (
	"sort"

	models "marginalia/internal/domain/models/annotation"
)

// commentCell holds the comments of the chapter a session has open, oldest
// first. Highlight activation reads it to resolve a highlight to its comment.
// It is reset whenever the session switches chapters.
type commentCell struct {
	comments []models.Comment
	loaded   bool
}

func (c *commentCell) reset() {
	c.comments = nil
	c.loaded = false
}

func (c *commentCell) set(comments []models.Comment) {
	c.comments = append([]models.Comment(nil), comments...)
	c.sort()
	c.loaded = true
}

func (c *commentCell) add(comment models.Comment) {
	c.comments = append(c.comments, comment)
	c.sort()
}

func (c *commentCell) replace(comment models.Comment) {
	for i := range c.comments {
		if c.comments[i].ID == comment.ID {
			c.comments[i] = comment
			return
		}
	}
}

func (c *commentCell) remove(id string) (models.Comment, bool) {
	for i, comment := range c.comments {
		if comment.ID == id {
			c.comments = append(c.comments[:i], c.comments[i+1:]...)
			return comment, true
		}
	}
	return models.Comment{}, false
}

func (c *commentCell) byID(id string) (models.Comment, bool) {
	for _, comment := range c.comments {
		if comment.ID == id {
			return comment, true
		}
	}
	return models.Comment{}, false
}

func (c *commentCell) byHighlight(highlightID string) (models.Comment, bool) {
	for _, comment := range c.comments {
		if comment.HighlightID == highlightID {
			return comment, true
		}
	}
	return models.Comment{}, false
}

func (c *commentCell) list() []models.Comment {
	return append(make([]models.Comment, 0, len(c.comments)), c.comments...)
}

func (c *commentCell) sort() {
	sort.SliceStable(c.comments, func(i, j int) bool {
		return c.comments[i].CreatedAt.Before(c.comments[j].CreatedAt)
	})
}

package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/moltflow/backend/internal/models"
)

// ListTags aggregates tag usage across all questions, most used first.
func (h *Handler) ListTags(c *gin.Context) {
	var rows []models.Question
	if err := h.db.Select("tags").Find(&rows).Error; err != nil {
		h.log.Error("tag scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tags"})
		return
	}

	counts := make(map[string]int)
	for _, q := range rows {
		for _, tag := range q.Tags {
			counts[tag]++
		}
	}

	type tagCount struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	tags := make([]tagCount, 0, len(counts))
	for name, count := range counts {
		tags = append(tags, tagCount{Name: name, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

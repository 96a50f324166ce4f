package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModels(t *testing.T) {
	t.Run("Link TableName", func(t *testing.T) {
		link := Link{}
		assert.Equal(t, "link_infos", link.TableName())
	})

	t.Run("Visit TableName", func(t *testing.T) {
		visit := Visit{}
		assert.Equal(t, "visit_infos", visit.TableName())
	})
}

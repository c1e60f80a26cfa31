package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itiky/synclist/model"
)

func Test_RenderMembers(t *testing.T) {
	l := model.ListSnapshot{
		Id:    "l",
		Name:  "Groceries",
		Owner: "u2",
		Members: []model.Member{
			{Id: "u1", Username: "alice"},
			{Id: "u2", Username: "bob"},
		},
	}

	require.Equal(t, "== Groceries members\n  bob (Owner)\n  alice (me)\n", renderMembers(l, "u1"))
}

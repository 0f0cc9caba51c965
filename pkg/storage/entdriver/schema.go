package entdriver

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Column names of the turns table.
const (
	ColumnID             = "id"
	ColumnUser           = "user_id"
	ColumnConversationID = "conversation_id"
	ColumnMessageID      = "message_id"
	ColumnTaskID         = "task_id"
	ColumnQuery          = "query"
	ColumnAnswer         = "answer"
	ColumnStatus         = "status"
	ColumnStreaming      = "streaming"
	ColumnEventCount     = "event_count"
	ColumnError          = "error"
	ColumnStartedAt      = "started_at"
	ColumnCompletedAt    = "completed_at"
)

// textSize marks unbounded text columns.
const textSize = 2147483647

var (
	// TurnsColumns holds the columns of the turns table, in insert order.
	TurnsColumns = []*schema.Column{
		{Name: ColumnID, Type: field.TypeString, Unique: true},
		{Name: ColumnUser, Type: field.TypeString},
		{Name: ColumnConversationID, Type: field.TypeString},
		{Name: ColumnMessageID, Type: field.TypeString, Default: ""},
		{Name: ColumnTaskID, Type: field.TypeString, Default: ""},
		{Name: ColumnQuery, Type: field.TypeString, Size: textSize},
		{Name: ColumnAnswer, Type: field.TypeString, Size: textSize},
		{Name: ColumnStatus, Type: field.TypeString},
		{Name: ColumnStreaming, Type: field.TypeBool},
		{Name: ColumnEventCount, Type: field.TypeInt},
		{Name: ColumnError, Type: field.TypeString, Size: textSize, Default: ""},
		{Name: ColumnStartedAt, Type: field.TypeTime},
		{Name: ColumnCompletedAt, Type: field.TypeTime},
	}

	// TurnsTable holds the schema information for the "relay_turns" table.
	TurnsTable = &schema.Table{
		Name:       "relay_turns",
		Columns:    TurnsColumns,
		PrimaryKey: []*schema.Column{TurnsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "turn_user_id_conversation_id_started_at",
				Unique:  false,
				Columns: []*schema.Column{TurnsColumns[1], TurnsColumns[2], TurnsColumns[11]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{TurnsTable}
)

func columnNames() []string {
	names := make([]string, len(TurnsColumns))
	for i, c := range TurnsColumns {
		names[i] = c.Name
	}
	return names
}

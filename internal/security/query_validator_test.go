package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuery_AllowsSelect(t *testing.T) {
	assert.NoError(t, ValidateQuery("SELECT id, name, value FROM test_data ORDER BY id"))
	assert.NoError(t, ValidateQuery("  select * from measurements where reading > 1.5"))
}

func TestValidateQuery_AllowsDocumentFind(t *testing.T) {
	assert.NoError(t, ValidateQuery(`db.items.find({"checked": true})`))
}

func TestValidateQuery_RejectsNonReadStatements(t *testing.T) {
	for _, q := range []string{
		"INSERT INTO test_data VALUES (3, 'x', 1)",
		"UPDATE test_data SET value = 0",
		"DELETE FROM test_data",
		"DROP TABLE test_data",
	} {
		assert.ErrorIs(t, ValidateQuery(q), ErrNotReadOnly, q)
	}
}

func TestValidateQuery_RejectsMultiStatement(t *testing.T) {
	err := ValidateQuery("SELECT 1; DROP TABLE test_data")
	assert.ErrorIs(t, err, ErrMultipleQueries)
}

func TestValidateQuery_RejectsEmbeddedKeywords(t *testing.T) {
	err := ValidateQuery("SELECT * FROM test_data UNION SELECT password FROM users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNION")
}

func TestValidateQuery_AllowsKeywordLookalikeColumns(t *testing.T) {
	// "deleted_at" contains DELETE but is not a standalone keyword.
	assert.NoError(t, ValidateQuery("SELECT deleted_at, created_by FROM audit_log"))
}

func TestValidateQuery_BlocksSystemTables(t *testing.T) {
	for _, q := range []string{
		"SELECT * FROM information_schema.tables",
		"SELECT * FROM mysql.user",
		"SELECT * FROM pg_catalog.pg_tables",
	} {
		err := ValidateQuery(q)
		require.Error(t, err, q)
		assert.Contains(t, err.Error(), "system table")
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("admin@example.com"))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("a@b"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("evil@example.com\r\nBcc: victim@example.com"), ErrInvalidEmail)
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSeeded(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func countRows(t *testing.T, st *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, st.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpenSeedsSampleData(t *testing.T) {
	st := openSeeded(t)

	for _, table := range []string{"Customers", "Orders", "OrderDetails", "Products"} {
		assert.Equal(t, sampleRowCount, countRows(t, st, table), table)
	}

	var name, city, country string
	require.NoError(t, st.db.QueryRow(
		"SELECT CustomerName, City, Country FROM Customers WHERE CustomerID = 13").
		Scan(&name, &city, &country))
	assert.Equal(t, "Customer 13", name)
	assert.Equal(t, "City 3", city)
	assert.Equal(t, "Country 3", country)

	var date string
	require.NoError(t, st.db.QueryRow(
		"SELECT OrderDate FROM Orders WHERE OrderID = 1").Scan(&date))
	assert.Equal(t, "2023-01-02", date)
}

func TestOpenSkipsSeedingExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.db.Exec("DELETE FROM Customers WHERE CustomerID > 10")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, 10, countRows(t, st, "Customers"))
}

func TestSessionValidateAcceptsGoodSQL(t *testing.T) {
	st := openSeeded(t)
	session, err := st.Session(context.Background())
	require.NoError(t, err)
	defer session.Close()

	assert.NoError(t, session.Validate(context.Background(), "SELECT COUNT(*) FROM Customers"))
}

func TestSessionValidateRejectsBadSQL(t *testing.T) {
	st := openSeeded(t)
	session, err := st.Session(context.Background())
	require.NoError(t, err)
	defer session.Close()

	err = session.Validate(context.Background(), "SELECT * FROM NoSuchTable")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestSessionValidateLeavesNoVisibleChange(t *testing.T) {
	st := openSeeded(t)
	session, err := st.Session(context.Background())
	require.NoError(t, err)
	defer session.Close()

	sessionCount := func() int {
		var n int
		rows, err := session.Query(context.Background(), "SELECT COUNT(*) FROM Customers")
		require.NoError(t, err)
		defer rows.Close()
		require.True(t, rows.Next())
		require.NoError(t, rows.Scan(&n))
		return n
	}

	// a successful mutation must still be rolled back
	require.NoError(t, session.Validate(context.Background(), "DELETE FROM Customers"))
	assert.Equal(t, sampleRowCount, sessionCount())

	// and the session must stay usable for further statements
	assert.NoError(t, session.Validate(context.Background(), "SELECT 1"))
}

func TestSessionSchemaText(t *testing.T) {
	st := openSeeded(t)
	session, err := st.Session(context.Background())
	require.NoError(t, err)
	defer session.Close()

	schema, err := session.SchemaText(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "- Customers(CustomerID (INTEGER), CustomerName (TEXT)")
	assert.Contains(t, schema, "- Orders(OrderID (INTEGER), CustomerID (INTEGER), OrderDate (TEXT))")
	assert.Contains(t, schema, "- Products(ProductID (INTEGER), ProductName (TEXT), Price (REAL))")
}

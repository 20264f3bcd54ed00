package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dbsmedya/treestream/internal/config"
	"github.com/dbsmedya/treestream/internal/logger"
	"github.com/dbsmedya/treestream/internal/sqlutil"
	"github.com/dbsmedya/treestream/internal/traverse"
)

// MySQLStore reads a catalog out of two mapped tables: a container table
// that self-references through a parent FK, and a leaf table that points
// at its container. All queries order by primary key so that repeated
// traversals over an unchanged catalog see the same child order.
type MySQLStore struct {
	db     *sql.DB
	schema config.SchemaConfig
	logger *logger.Logger

	rootsAllQuery    string
	rootsByNameQuery string
	refProbeQuery    string
	containersQuery  string
	leavesQuery      string
}

// NewMySQLStore creates a store over the given connection and schema
// mapping. Every mapped identifier is validated before being interpolated
// into a query.
func NewMySQLStore(db *sql.DB, schema config.SchemaConfig, log *logger.Logger) (*MySQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	quoted := make(map[string]string)
	for _, ident := range []string{
		schema.ContainerTable, schema.ContainerPK, schema.ContainerName, schema.ContainerParentFK,
		schema.LeafTable, schema.LeafPK, schema.LeafName, schema.LeafFK, schema.LeafModified,
	} {
		q, err := sqlutil.QuoteIdentifierSafe(ident)
		if err != nil {
			return nil, fmt.Errorf("invalid schema mapping: %w", err)
		}
		quoted[ident] = q
	}

	s := &MySQLStore{
		db:     db,
		schema: schema,
		logger: log,
	}

	cTable := quoted[schema.ContainerTable]
	cPK := quoted[schema.ContainerPK]
	cName := quoted[schema.ContainerName]
	cParent := quoted[schema.ContainerParentFK]
	lTable := quoted[schema.LeafTable]
	lPK := quoted[schema.LeafPK]
	lName := quoted[schema.LeafName]
	lFK := quoted[schema.LeafFK]
	lMod := quoted[schema.LeafModified]

	s.rootsAllQuery = fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NULL ORDER BY %s",
		cPK, cTable, cParent, cPK,
	)
	s.rootsByNameQuery = fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NULL AND %s = ? ORDER BY %s",
		cPK, cTable, cParent, cName, cPK,
	)
	s.refProbeQuery = fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		cPK, cTable, cPK,
	)
	s.containersQuery = fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? ORDER BY %s",
		cPK, cTable, cParent, cPK,
	)
	s.leavesQuery = fmt.Sprintf(
		"SELECT %s, %s, %s FROM %s WHERE %s = ? ORDER BY %s",
		lPK, lName, lMod, lTable, lFK, lPK,
	)

	return s, nil
}

// Roots implements traverse.Store. Root containers are rows whose parent
// FK is NULL; a byRef selector probes for existence of any container, not
// just a top-level one, so scoped walks can start anywhere in the tree.
func (s *MySQLStore) Roots(ctx context.Context, sel traverse.RootSelector) ([]traverse.ContainerRef, error) {
	switch sel.Scope {
	case traverse.RootByRef:
		var pk interface{}
		err := s.db.QueryRowContext(ctx, s.refProbeQuery, string(sel.Ref)).Scan(&pk)
		if err == sql.ErrNoRows {
			s.logger.Debugw("Root ref does not resolve, traversal will be empty", "ref", string(sel.Ref))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root ref %q: %w", sel.Ref, err)
		}
		return []traverse.ContainerRef{traverse.ContainerRef(refString(pk))}, nil

	case traverse.RootByName:
		return s.queryRefs(ctx, s.rootsByNameQuery, sel.Name)

	default:
		return s.queryRefs(ctx, s.rootsAllQuery)
	}
}

// Children implements traverse.Store. Sub-containers come first, then
// leaves, each in primary-key order: that is this store's documented,
// stable child order.
func (s *MySQLStore) Children(ctx context.Context, ref traverse.ContainerRef) ([]traverse.Child, error) {
	subRefs, err := s.queryRefs(ctx, s.containersQuery, string(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-containers of %q: %w", ref, err)
	}

	children := make([]traverse.Child, 0, len(subRefs))
	for _, sub := range subRefs {
		children = append(children, traverse.ContainerChild(sub))
	}

	rows, err := s.db.QueryContext(ctx, s.leavesQuery, string(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves of %q: %w", ref, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pk interface{}
		var name sql.NullString
		var modified sql.NullTime
		if err := rows.Scan(&pk, &name, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan leaf of %q: %w", ref, err)
		}

		leaf := traverse.LeafItem{
			Ref:  refString(pk),
			Name: name.String,
		}
		if modified.Valid {
			t := modified.Time
			leaf.LastModified = &t
		}
		children = append(children, traverse.LeafChild(leaf))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaves of %q: %w", ref, err)
	}

	return children, nil
}

// CountLeaves returns the number of leaves in the mapped leaf table that
// pass the changed-since filter. This counts the whole table, so it only
// lines up with traversals that start from every root.
func (s *MySQLStore) CountLeaves(ctx context.Context, changedSince *time.Time, includeMissing bool) (int64, error) {
	lTable := sqlutil.QuoteIdentifier(s.schema.LeafTable)
	lMod := sqlutil.QuoteIdentifier(s.schema.LeafModified)

	var query string
	var args []interface{}
	switch {
	case changedSince == nil:
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s", lTable)
	case includeMissing:
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > ? OR %s IS NULL", lTable, lMod, lMod)
		args = append(args, *changedSince)
	default:
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > ?", lTable, lMod)
		args = append(args, *changedSince)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count leaves: %w", err)
	}
	return count, nil
}

// queryRefs runs a single-column query and returns the values as refs.
func (s *MySQLStore) queryRefs(ctx context.Context, query string, args ...interface{}) ([]traverse.ContainerRef, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []traverse.ContainerRef
	for rows.Next() {
		var pk interface{}
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		refs = append(refs, traverse.ContainerRef(refString(pk)))
	}
	return refs, rows.Err()
}

// refString normalizes a scanned primary-key value into the opaque ref
// form. The MySQL driver returns int64 for integer columns and []byte for
// text columns.
func refString(v interface{}) string {
	switch pk := v.(type) {
	case int64:
		return strconv.FormatInt(pk, 10)
	case []byte:
		return string(pk)
	case string:
		return pk
	default:
		return fmt.Sprintf("%v", pk)
	}
}

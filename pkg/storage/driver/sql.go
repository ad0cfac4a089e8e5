/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver // import "github.com/depotdl/depotdl/pkg/storage/driver"

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"

	// Import pq for postgres dialect
	_ "github.com/lib/pq"
)

var _ Driver = (*SQL)(nil)

// SQLDriverName is the string name of this driver.
const SQLDriverName = "SQL"

const (
	sqlRecordTableName            = "version_records"
	sqlRecordTableKeyColumn       = "key"
	sqlRecordTableBodyColumn      = "body"
	sqlRecordTableCreatedAtColumn = "createdAt"
	postgreSQLDialect             = "postgres"
)

// SQL is the sql storage driver implementation.
type SQL struct {
	db               *sqlx.DB
	statementBuilder sq.StatementBuilderType

	Log func(string, ...interface{})
}

// Name returns the name of the driver.
func (s *SQL) Name() string {
	return SQLDriverName
}

func (s *SQL) ensureDBSetup() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "init",
				Up: []string{
					fmt.Sprintf(`
						CREATE TABLE %s (
							%s VARCHAR(255) PRIMARY KEY,
							%s TEXT NOT NULL,
							%s INTEGER NOT NULL
						);
					`,
						sqlRecordTableName,
						sqlRecordTableKeyColumn,
						sqlRecordTableBodyColumn,
						sqlRecordTableCreatedAtColumn,
					),
				},
				Down: []string{
					fmt.Sprintf(`
						DROP TABLE %s;
					`, sqlRecordTableName),
				},
			},
		},
	}

	_, err := migrate.Exec(s.db.DB, postgreSQLDialect, migrations, migrate.Up)
	return err
}

// SQLRecordWrapper describes how version records are stored in an SQL database.
type SQLRecordWrapper struct {
	// The primary key, the metadata file name of the record
	Key string `db:"key"`

	// The encoded record
	Body string `db:"body"`

	CreatedAt int `db:"createdAt"`
}

// NewSQL initializes a new sql driver.
func NewSQL(connectionString string, logger func(string, ...interface{})) (*SQL, error) {
	db, err := sqlx.Connect(postgreSQLDialect, connectionString)
	if err != nil {
		return nil, err
	}

	driver := &SQL{
		db:               db,
		Log:              logger,
		statementBuilder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	if err := driver.ensureDBSetup(); err != nil {
		return nil, err
	}

	return driver, nil
}

// Get returns the record stored under key.
func (s *SQL) Get(key string) ([]byte, error) {
	var record SQLRecordWrapper

	query, args, err := s.statementBuilder.
		Select(sqlRecordTableBodyColumn).
		From(sqlRecordTableName).
		Where(sq.Eq{sqlRecordTableKeyColumn: key}).
		ToSql()
	if err != nil {
		s.Log("failed to build query: %v", err)
		return nil, err
	}

	// Get will return an error if the result is empty
	if err := s.db.Get(&record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keyError(key, ErrRecordNotFound)
		}
		s.Log("got SQL error when getting record %s: %v", key, err)
		return nil, err
	}
	return []byte(record.Body), nil
}

// List returns every stored key.
func (s *SQL) List() ([]string, error) {
	query, args, err := s.statementBuilder.
		Select(sqlRecordTableKeyColumn).
		From(sqlRecordTableName).
		OrderBy(sqlRecordTableKeyColumn).
		ToSql()
	if err != nil {
		s.Log("failed to build query: %v", err)
		return nil, err
	}

	var keys []string
	if err := s.db.Select(&keys, query, args...); err != nil {
		s.Log("list: failed to list: %v", err)
		return nil, err
	}
	return keys, nil
}

// Create inserts a new record. An existing row for key is left untouched and
// reported as ErrRecordExists.
func (s *SQL) Create(key string, data []byte) error {
	if key == "" {
		return keyError(key, ErrInvalidKey)
	}

	insertQuery, args, err := s.statementBuilder.
		Insert(sqlRecordTableName).
		Columns(
			sqlRecordTableKeyColumn,
			sqlRecordTableBodyColumn,
			sqlRecordTableCreatedAtColumn,
		).
		Values(
			key,
			string(data),
			int(time.Now().Unix()),
		).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", sqlRecordTableKeyColumn)).
		ToSql()
	if err != nil {
		s.Log("failed to build insert query: %v", err)
		return err
	}

	result, err := s.db.Exec(insertQuery, args...)
	if err != nil {
		s.Log("failed to store record %s in SQL database: %v", key, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return keyError(key, ErrRecordExists)
	}
	return nil
}

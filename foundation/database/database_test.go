package database

import (
	"testing"

	"github.com/matryer/is"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "sqlite in memory", cfg: Config{Driver: DriverSQLite, Path: ":memory:"}},
		{name: "sqlite without path", cfg: Config{Driver: DriverSQLite}, wantErr: true},
		{name: "unknown driver", cfg: Config{Driver: "oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			db, err := Open(tt.cfg)
			if tt.wantErr {
				is.True(err != nil)
				return
			}
			is.NoErr(err)
			is.NoErr(db.Close())
		})
	}
}

func TestPrepareNamedQueryRowsFromMap(t *testing.T) {
	is := is.New(t)
	db, err := Open(Config{Driver: DriverSQLite, Path: ":memory:"})
	is.NoErr(err)
	defer func() {
		_ = db.Close()
	}()
	_, err = db.Exec("create table station (id varchar(16), name varchar(64))")
	is.NoErr(err)
	_, err = db.Exec("insert into station (id, name) values ('B', '坂下'), ('C', '中原'), ('D', '竹林')")
	is.NoErr(err)

	rows, err := PrepareNamedQueryRowsFromMap("select name from station where id in (:ids) order by id", db,
		map[string]interface{}{"ids": []string{"B", "D"}})
	is.NoErr(err)
	defer func() {
		_ = rows.Close()
	}()
	var names []string
	for rows.Next() {
		var name string
		is.NoErr(rows.Scan(&name))
		names = append(names, name)
	}
	is.NoErr(rows.Err())
	is.Equal(names, []string{"坂下", "竹林"})
}

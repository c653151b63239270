package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// DataSource presents a Manager as a connection factory. It implements
// driver.Connector, so sql.OpenDB(m.DataSource()) gives a separate pool that
// resolves its connections exactly as the Manager does.
type DataSource struct {
	m *Manager
}

var _ driver.Connector = (*DataSource)(nil)

// Conn returns a session from the Manager's cached database.
func (d *DataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	db, err := d.m.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx)
}

// DB returns the Manager's cached database.
func (d *DataSource) DB(ctx context.Context) (*sql.DB, error) {
	db, err := d.m.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db.DB, nil
}

// Connect opens a new driver connection for the Manager's target.
func (d *DataSource) Connect(ctx context.Context) (driver.Conn, error) {
	db, err := d.m.DB(ctx)
	if err != nil {
		return nil, err
	}
	t, err := Resolve(d.m.Properties())
	if err != nil {
		return nil, err
	}

	drv := db.Driver()
	if dc, ok := drv.(driver.DriverContext); ok {
		c, err := dc.OpenConnector(t.DSN)
		if err != nil {
			return nil, fmt.Errorf("open connector: %w", err)
		}
		return c.Connect(ctx)
	}
	return drv.Open(t.DSN)
}

// Driver returns the driver of the Manager's database, opening it if needed.
// It returns nil when the database can't be opened.
func (d *DataSource) Driver() driver.Driver {
	db, err := d.m.DB(context.Background())
	if err != nil {
		d.m.log.Warn().Err(err).Msg("data source has no driver")
		return nil
	}
	return db.Driver()
}

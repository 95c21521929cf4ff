package catalog_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/catalog/catalogtest"
)

func TestPartitionName(t *testing.T) {
	t.Parallel()
	if got := catalog.PartitionName(7); got != "ednevnik_tenant_db_tenant_id_7" {
		t.Errorf("want ednevnik_tenant_db_tenant_id_7, got %s", got)
	}
}

func Test_Catalog_ListTenantsOrdered(t *testing.T) {
	t.Parallel()
	f := catalogtest.New(t)
	f.AddTenant(t, 9, "Druga")
	f.AddTenant(t, 3, "Prva")

	ids, err := f.Catalog(t).ListTenants(context.Background())
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}
	if !slices.Equal(ids, []catalog.TenantID{3, 9}) {
		t.Errorf("want [3 9], got %v", ids)
	}
}

func Test_Catalog_EmptyWorkspace(t *testing.T) {
	t.Parallel()
	f := catalogtest.New(t)

	ps, err := f.Catalog(t).Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions: %v", err)
	}
	if len(ps) != 0 {
		t.Errorf("want no partitions, got %d", len(ps))
	}
}

func Test_Catalog_PartitionHandle(t *testing.T) {
	t.Parallel()
	f := catalogtest.New(t)
	db := f.AddTenant(t, 4, "Škola")
	f.Exec(t, db, `INSERT INTO sections (id, section_code, class_code, tenant_id) VALUES (1, 'a', 'I', 4)`)

	c := f.Catalog(t)
	p, err := c.Partition(context.Background(), 4)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if p.ID != 4 || p.Name != catalog.PartitionName(4) {
		t.Errorf("want id 4 / %s, got %d / %s", catalog.PartitionName(4), p.ID, p.Name)
	}
	var n int
	if err := p.DB.Get(&n, `SELECT COUNT(*) FROM sections`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 section, got %d", n)
	}

	again, err := c.Partition(context.Background(), 4)
	if err != nil {
		t.Fatalf("Partition again: %v", err)
	}
	if again != p {
		t.Errorf("want cached partition handle")
	}
}

func Test_Catalog_MissingPartitionFile(t *testing.T) {
	t.Parallel()
	f := catalogtest.New(t)
	f.Exec(t, f.Workspace, `INSERT INTO tenant (id, tenant_name) VALUES (12, 'Bez baze')`)

	if _, err := f.Catalog(t).Partitions(context.Background()); err == nil {
		t.Fatal("want error for a tenant without a partition file")
	}
}

func Test_Catalog_ListTenantsPropagatesError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT id FROM tenant ORDER BY id`).WillReturnError(boom)

	c := catalog.New(sqlx.NewDb(db, "sqlmock"), nil)
	if _, err := c.ListTenants(context.Background()); !errors.Is(err, boom) {
		t.Errorf("want wrapped %v, got %v", boom, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func Test_Catalog_OpenFailureIsWrapped(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectQuery(`SELECT id FROM tenant`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	unreachable := errors.New("unreachable")
	var opened []string
	c := catalog.New(sqlx.NewDb(db, "sqlmock"), func(_ context.Context, name string) (*sqlx.DB, error) {
		opened = append(opened, name)
		return nil, unreachable
	})
	if _, err := c.Partitions(context.Background()); !errors.Is(err, unreachable) {
		t.Errorf("want wrapped %v, got %v", unreachable, err)
	}
	if !slices.Equal(opened, []string{"ednevnik_tenant_db_tenant_id_5"}) {
		t.Errorf("want partition resolved by name function, got %v", opened)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()
	if _, err := catalog.Open(context.Background(), catalog.Config{Driver: "mariadb"}); err == nil {
		t.Error("want error for unsupported driver")
	}
}

func TestWithDatabase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"url", "postgres://u:p@db:5432/ednevnik_workspace?sslmode=disable", "postgres://u:p@db:5432/ednevnik_tenant_db_tenant_id_1?sslmode=disable"},
		{"kv with dbname", "host=db dbname=ednevnik_workspace sslmode=disable", "host=db dbname=ednevnik_tenant_db_tenant_id_1 sslmode=disable"},
		{"kv without dbname", "host=db sslmode=disable", "host=db sslmode=disable dbname=ednevnik_tenant_db_tenant_id_1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := catalog.WithDatabase(tc.in, catalog.PartitionName(1))
			if err != nil {
				t.Fatalf("WithDatabase: %v", err)
			}
			if got != tc.want {
				t.Errorf("want %s, got %s", tc.want, got)
			}
		})
	}
}

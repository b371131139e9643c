package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/configuration"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(configuration.Db{Name: "planner", Host: "db", Port: "5432", User: "app", Password: "p@ss"})
	assert.Equal(t, "postgres://app:p%40ss@db:5432/planner?sslmode=disable", dsn)

	dsn = PostgresDSN(configuration.Db{Name: "planner", Host: "db", Port: "5432", SSLMode: "require"})
	assert.Equal(t, "postgres://db:5432/planner?sslmode=require", dsn)
}

func TestMSSQLDSN(t *testing.T) {
	dsn := MSSQLDSN(configuration.Db{Name: "planner", Host: "localhost", Port: "1433", User: "sa", Password: "pw"})
	assert.Equal(t, "sqlserver://sa:pw@localhost:1433?TrustServerCertificate=true&database=planner&encrypt=true", dsn)

	dsn = MSSQLDSN(configuration.Db{Name: "planner", Host: "prod.database.windows.net", Port: "1433", User: "app"})
	assert.Equal(t, "sqlserver://app@prod.database.windows.net:1433?database=planner&encrypt=true", dsn)
}

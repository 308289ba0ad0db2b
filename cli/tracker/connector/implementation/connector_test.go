package implementation

import (
	"io/ioutil"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillSettingsDefaults(t *testing.T) {
	log.SetOutput(ioutil.Discard)

	tests := []struct {
		name     string
		settings map[string]string
		want     Settings
	}{
		{
			name:     "empty uses postgres defaults",
			settings: map[string]string{},
			want: Settings{
				Driver: "postgres", Host: "localhost", Port: "5432", User: "postgres",
				Password: "postgres", Database: "fieldnav", SSLMode: "disable",
			},
		},
		{
			name:     "mysql default port",
			settings: map[string]string{"driver": "mysql", "user": "root"},
			want: Settings{
				Driver: "mysql", Host: "localhost", Port: "3306", User: "root",
				Password: "postgres", Database: "fieldnav", SSLMode: "disable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Connector{}
			c.FillSettings(tt.settings)
			assert.Equal(t, tt.want, c.GetSettings())
		})
	}
}

func TestDataSourceName(t *testing.T) {
	pg := Settings{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", Database: "nav", SSLMode: "disable"}
	dsn, err := pg.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "dbname=nav host=db port=5432 user=u password=p sslmode=disable", dsn)

	migrationURL, err := pg.MigrationURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/nav?sslmode=disable", migrationURL)

	my := Settings{Driver: "mysql", Host: "db", Port: "3306", User: "u", Password: "p", Database: "nav"}
	dsn, err = my.DataSourceName()
	require.NoError(t, err)
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/nav")
	assert.Contains(t, dsn, "parseTime=true")

	_, err = Settings{Driver: "oracle"}.DataSourceName()
	assert.Error(t, err)
}

func TestConnectNilSettings(t *testing.T) {
	c := Connector{}
	assert.Error(t, c.Connect(nil))
	assert.NoError(t, c.Close())
}

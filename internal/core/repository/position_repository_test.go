package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"gt06gateway/internal/core/model"
)

func newMockRepository(t *testing.T) (*PostgresPositionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresPositionRepository(db), mock
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS locations").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAppend(t *testing.T) {
	repo, mock := newMockRepository(t)

	pos := model.NewPosition("123456789012345", "gt06")
	pos.Latitude = -24.9126
	pos.Longitude = 114.5767
	pos.Speed = 60
	pos.Valid = true
	pos.AddAlarm(model.AlarmSOS)
	pos.Set(model.AttrOdometer, 1000)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO locations")).
		WithArgs(
			pos.ID, pos.DeviceID, "gt06", pos.Timestamp,
			114.5767, -24.9126, // point(lon, lat)
			0.0, 60.0, 0.0, true, 0, false, 0.0, 0.0, 0,
			"{\"sos\"}", []byte(`{"odometer":1000}`), []byte("[]"),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Append(context.Background(), pos); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindLatestByDeviceID(t *testing.T) {
	repo, mock := newMockRepository(t)
	ts := time.Date(2024, 3, 14, 8, 15, 30, 0, time.UTC)

	columns := []string{
		"id", "device_id", "protocol", "timestamp", "lat", "lon", "altitude", "speed", "course",
		"valid", "satellites", "ignition", "battery", "power", "rssi", "alarms", "attributes", "cell_towers",
	}
	rows := sqlmock.NewRows(columns).AddRow(
		"pos-1", "dev-1", "gt06", ts, 24.9126, 114.5767, 12.0, 40.0, 90.0,
		true, 9, true, 4.1, 12.5, 4, []byte("{sos,powerCut}"), []byte(`{"odometer":1000}`),
		[]byte(`[{"mcc":460,"mnc":0,"lac":10342,"cid":3707}]`),
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM locations")).WithArgs("dev-1").WillReturnRows(rows)

	got, err := repo.FindLatestByDeviceID(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("FindLatestByDeviceID() error = %v", err)
	}
	if got.ID != "pos-1" || !got.Timestamp.Equal(ts) || got.Latitude != 24.9126 || got.Longitude != 114.5767 {
		t.Errorf("position = %+v", got)
	}
	if len(got.Alarms) != 2 || got.Alarms[1] != model.AlarmPowerCut {
		t.Errorf("Alarms = %v", got.Alarms)
	}
	if got.Attributes[model.AttrOdometer] != float64(1000) {
		t.Errorf("Attributes = %v", got.Attributes)
	}
	if len(got.CellTowers) != 1 || got.CellTowers[0].CID != 3707 {
		t.Errorf("CellTowers = %+v", got.CellTowers)
	}
}

func TestFindLatestByDeviceIDNoRows(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM locations")).
		WithArgs("dev-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.FindLatestByDeviceID(context.Background(), "dev-2")
	if err != nil || got != nil {
		t.Errorf("FindLatestByDeviceID() = %v, %v, want nil, nil", got, err)
	}
}

func TestInMemoryPositionRepository(t *testing.T) {
	repo := NewInMemoryPositionRepository()
	ctx := context.Background()
	base := time.Now().UTC()

	older := model.NewPosition("dev-1", "gt06")
	older.Timestamp = base.Add(-time.Minute)
	newer := model.NewPosition("dev-1", "gt06")
	newer.Timestamp = base
	other := model.NewPosition("dev-2", "gt06")

	for _, p := range []*model.Position{newer, older, other} {
		if err := repo.Append(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := repo.FindLatestByDeviceID(ctx, "dev-1")
	if err != nil || latest != newer {
		t.Errorf("FindLatestByDeviceID() = %v, %v", latest, err)
	}
	if n := len(repo.FindByDeviceID("dev-1")); n != 2 {
		t.Errorf("FindByDeviceID() returned %d positions", n)
	}
	if missing, _ := repo.FindLatestByDeviceID(ctx, "dev-3"); missing != nil {
		t.Errorf("unknown device returned %v", missing)
	}
}

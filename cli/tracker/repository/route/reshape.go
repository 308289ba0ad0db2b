package route

import (
	"github.com/daniil11ru/fieldnav/cli/tracker/source"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
	"github.com/daniil11ru/fieldnav/cli/tracker/util"
)

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func routeToRow(r types.Route) source.Row {
	return source.Row{
		"id":         r.ID,
		"name":       r.Name,
		"created_by": r.CreatedBy,
		"user_id":    r.UserID,
		"created_at": r.CreatedAt.UTC(),
		"updated_at": r.UpdatedAt.UTC(),
	}
}

func locationColumns(row source.Row, l types.Location) {
	row["latitude"] = l.Latitude
	row["longitude"] = l.Longitude
	row["accuracy"] = nullable(l.Accuracy)
	row["altitude"] = nullable(l.Altitude)
	row["speed"] = nullable(l.Speed)
}

func pointRows(r types.Route) []source.Row {
	rows := make([]source.Row, 0, len(r.Points))
	for _, p := range r.Points {
		row := source.Row{"id": p.ID, "route_id": r.ID, "timestamp": p.Timestamp}
		locationColumns(row, p.Location)
		rows = append(rows, row)
	}
	return rows
}

func checkpointRows(r types.Route) []source.Row {
	rows := make([]source.Row, 0, len(r.Checkpoints))
	for _, c := range r.Checkpoints {
		row := source.Row{"id": c.ID, "route_id": r.ID, "timestamp": c.Location.Timestamp}
		locationColumns(row, c.Location)
		rows = append(rows, row)
	}
	return rows
}

// reshaper накапливает первую ошибку приведения, чтобы не проверять каждое поле отдельно
type reshaper struct {
	table string
	row   source.Row
	err   error
}

func (r *reshaper) fail(field string, err error) {
	if r.err == nil {
		r.err = &types.ReshapeError{Table: r.table, Field: field, Err: err}
	}
}

func (r *reshaper) requiredString(field string) string {
	v, ok := r.row[field]
	if !ok || v == nil {
		r.fail(field, errMissing)
		return ""
	}
	s, err := util.ToString(v)
	if err != nil {
		r.fail(field, err)
	} else if s == "" {
		r.fail(field, errMissing)
	}
	return s
}

func (r *reshaper) text(field string) string {
	s, err := util.ToString(r.row[field])
	if err != nil {
		r.fail(field, err)
	}
	return s
}

func (r *reshaper) float(field string) float64 {
	v, ok := r.row[field]
	if !ok || v == nil {
		r.fail(field, errMissing)
		return 0
	}
	f, err := util.ToFloat64(v)
	if err != nil {
		r.fail(field, err)
	}
	return f
}

func (r *reshaper) nullFloat(field string) *float64 {
	f, err := util.ToNullFloat64(r.row[field])
	if err != nil {
		r.fail(field, err)
	}
	return f
}

func (r *reshaper) millis(field string) int64 {
	v, ok := r.row[field]
	if !ok || v == nil {
		return 0
	}
	n, err := util.ToInt64(v)
	if err != nil {
		r.fail(field, err)
	}
	return n
}

func (r *reshaper) location() types.Location {
	return types.Location{
		Latitude:  r.float("latitude"),
		Longitude: r.float("longitude"),
		Accuracy:  r.nullFloat("accuracy"),
		Altitude:  r.nullFloat("altitude"),
		Speed:     r.nullFloat("speed"),
		Timestamp: r.millis("timestamp"),
	}
}

func rowToRoute(row source.Row) (types.Route, error) {
	rs := &reshaper{table: source.TableRoutes, row: row}
	route := types.Route{
		ID:          rs.requiredString("id"),
		Name:        rs.text("name"),
		CreatedBy:   rs.text("created_by"),
		UserID:      rs.text("user_id"),
		Points:      []types.RoutePoint{},
		Checkpoints: []types.Checkpoint{},
	}

	var err error
	if route.CreatedAt, err = util.ToTime(row["created_at"]); err != nil {
		rs.fail("created_at", err)
	}
	if route.UpdatedAt, err = util.ToTime(row["updated_at"]); err != nil {
		rs.fail("updated_at", err)
	}
	return route, rs.err
}

func rowToPoint(row source.Row) (string, types.RoutePoint, error) {
	rs := &reshaper{table: source.TableRoutePoints, row: row}
	routeID := rs.requiredString("route_id")
	loc := rs.location()
	point := types.RoutePoint{
		ID:        rs.requiredString("id"),
		Location:  loc,
		Timestamp: loc.Timestamp,
	}
	return routeID, point, rs.err
}

func rowToCheckpoint(row source.Row) (string, types.Checkpoint, error) {
	rs := &reshaper{table: source.TableCheckpoints, row: row}
	routeID := rs.requiredString("route_id")
	checkpoint := types.Checkpoint{
		ID:       rs.requiredString("id"),
		Location: rs.location(),
	}
	return routeID, checkpoint, rs.err
}

func rowToAuthor(row source.Row) (types.Author, error) {
	rs := &reshaper{table: source.TableUsers, row: row}
	author := types.Author{
		ID:       rs.requiredString("id"),
		Username: rs.text("username"),
		Email:    rs.text("email"),
	}
	return author, rs.err
}

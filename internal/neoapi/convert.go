package neoapi

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/neo-catalog/internal/write"
	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

// ErrInvalidRequest marks a request struct that cannot be interpreted.
var ErrInvalidRequest = errors.New("invalid request")

// Request keys understood by GetNEO.
const (
	KeyDesignation = "designation"
	KeyName        = "name"
)

// Request keys understood by Query.
const (
	KeyDate        = "date"
	KeyStartDate   = "start_date"
	KeyEndDate     = "end_date"
	KeyMinDistance = "min_distance"
	KeyMaxDistance = "max_distance"
	KeyMinVelocity = "min_velocity"
	KeyMaxVelocity = "max_velocity"
	KeyMinDiameter = "min_diameter"
	KeyMaxDiameter = "max_diameter"
	KeyHazardous   = "hazardous"
	KeyLimit       = "limit"
)

// QueryFromStruct decodes Query request fields into a query. Unknown keys and
// mistyped values are rejected.
func QueryFromStruct(s *structpb.Struct) (query.Query, error) {
	var c query.Criteria
	limit := 0

	// Sorted so the first reported problem is deterministic.
	keys := make([]string, 0, len(s.GetFields()))
	for k := range s.GetFields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := s.GetFields()[key]
		var err error
		switch key {
		case KeyDate:
			c.Date, err = dateValue(key, v)
		case KeyStartDate:
			c.StartDate, err = dateValue(key, v)
		case KeyEndDate:
			c.EndDate, err = dateValue(key, v)
		case KeyMinDistance:
			c.DistanceMin, err = numberValue(key, v)
		case KeyMaxDistance:
			c.DistanceMax, err = numberValue(key, v)
		case KeyMinVelocity:
			c.VelocityMin, err = numberValue(key, v)
		case KeyMaxVelocity:
			c.VelocityMax, err = numberValue(key, v)
		case KeyMinDiameter:
			c.DiameterMin, err = numberValue(key, v)
		case KeyMaxDiameter:
			c.DiameterMax, err = numberValue(key, v)
		case KeyHazardous:
			b, ok := v.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				err = errors.Wrapf(ErrInvalidRequest, "%s must be a boolean", key)
				break
			}
			c.Hazardous = &b.BoolValue
		case KeyLimit:
			var n *float64
			if n, err = numberValue(key, v); err == nil {
				if *n != math.Trunc(*n) {
					err = errors.Wrapf(ErrInvalidRequest, "%s must be an integer", key)
					break
				}
				if *n < math.MinInt32 || *n > math.MaxInt32 {
					err = errors.Wrapf(ErrInvalidRequest, "%s %g is out of range", key, *n)
					break
				}
				limit = int(*n)
			}
		default:
			err = errors.WithHint(errors.Wrapf(ErrInvalidRequest, "unknown key %q", key),
				"supported keys: "+strings.Join(queryKeys, ", "))
		}
		if err != nil {
			return query.Query{}, err
		}
	}
	return query.Query{Filters: c.Filters(), Limit: limit}, nil
}

var queryKeys = []string{
	KeyDate, KeyStartDate, KeyEndDate,
	KeyMinDistance, KeyMaxDistance,
	KeyMinVelocity, KeyMaxVelocity,
	KeyMinDiameter, KeyMaxDiameter,
	KeyHazardous, KeyLimit,
}

// CriteriaToStruct is the client-side inverse of QueryFromStruct.
func CriteriaToStruct(c query.Criteria, limit int) (*structpb.Struct, error) {
	m := map[string]any{}
	putDate := func(key string, t *time.Time) {
		if t != nil {
			m[key] = t.Format(time.DateOnly)
		}
	}
	putNumber := func(key string, f *float64) {
		if f != nil {
			m[key] = *f
		}
	}
	putDate(KeyDate, c.Date)
	putDate(KeyStartDate, c.StartDate)
	putDate(KeyEndDate, c.EndDate)
	putNumber(KeyMinDistance, c.DistanceMin)
	putNumber(KeyMaxDistance, c.DistanceMax)
	putNumber(KeyMinVelocity, c.VelocityMin)
	putNumber(KeyMaxVelocity, c.VelocityMax)
	putNumber(KeyMinDiameter, c.DiameterMin)
	putNumber(KeyMaxDiameter, c.DiameterMax)
	if c.Hazardous != nil {
		m[KeyHazardous] = *c.Hazardous
	}
	if limit != 0 {
		m[KeyLimit] = limit
	}
	s, err := structpb.NewStruct(m)
	return s, errors.Wrap(err, "encode criteria")
}

func dateValue(key string, v *structpb.Value) (*time.Time, error) {
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s must be a YYYY-MM-DD string", key)
	}
	d, err := model.ParseDate(sv.StringValue)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s", key), ErrInvalidRequest)
	}
	return &d, nil
}

func numberValue(key string, v *structpb.Value) (*float64, error) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s must be a number", key)
	}
	f := nv.NumberValue
	return &f, nil
}

// LookupFromStruct extracts the designation or name of a GetNEO request.
// Exactly one of the two must be set.
func LookupFromStruct(s *structpb.Struct) (designation, name string, err error) {
	for key, v := range s.GetFields() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return "", "", errors.Wrapf(ErrInvalidRequest, "%s must be a string", key)
		}
		switch key {
		case KeyDesignation:
			designation = sv.StringValue
		case KeyName:
			name = sv.StringValue
		default:
			return "", "", errors.Wrapf(ErrInvalidRequest, "unknown key %q", key)
		}
	}
	if (designation == "") == (name == "") {
		return "", "", errors.WithHint(
			errors.Wrap(ErrInvalidRequest, "lookup needs exactly one identifier"),
			"set either designation or name")
	}
	return designation, name, nil
}

// NEOToStruct encodes an object the way the JSON serializer nests it.
func NEOToStruct(n *model.NearEarthObject) (*structpb.Struct, error) {
	row := write.NEORow{
		Designation:          n.Designation,
		PotentiallyHazardous: n.Hazardous,
	}
	if n.Name != "" {
		name := n.Name
		row.Name = &name
	}
	if n.HasDiameter() {
		d := n.Diameter
		row.DiameterKm = &d
	}
	return toStruct(row)
}

// RowToStruct encodes one serialized approach.
func RowToStruct(row write.Row) (*structpb.Struct, error) {
	return toStruct(row)
}

// RowFromStruct decodes a streamed approach.
func RowFromStruct(s *structpb.Struct) (write.Row, error) {
	var row write.Row
	err := fromStruct(s, &row)
	return row, err
}

// NEOFromStruct decodes a GetNEO response.
func NEOFromStruct(s *structpb.Struct) (write.NEORow, error) {
	var row write.NEORow
	err := fromStruct(s, &row)
	return row, err
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal row")
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "convert row to struct")
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "convert struct")
	}
	return errors.Wrap(json.Unmarshal(data, v), "unmarshal row")
}

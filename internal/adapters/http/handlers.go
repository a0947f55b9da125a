package http

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/pkg/logging"
)

// NoMapUnitsMessage is returned by /soil when the survey has nothing at the point.
const NoMapUnitsMessage = "No map unit polygons found for given coordinates"

// StatusPrompt is shown before the first click.
const StatusPrompt = "Click on the map to get coordinates"

// SoilHandler serves GET /soil?lon=&lat= with the map units containing the point.
func SoilHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var issues []ValidationIssue
		lon, issue := queryCoordinate(c, "lon", 180)
		if issue != nil {
			issues = append(issues, *issue)
		}
		lat, issue := queryCoordinate(c, "lat", 90)
		if issue != nil {
			issues = append(issues, *issue)
		}
		if len(issues) > 0 {
			return errUnprocessable(c, issues)
		}

		res, err := deps.Soil.MapUnitsAt(c.UserContext(), lon, lat)
		if err != nil {
			var upstream *domain.UpstreamError
			if errors.As(err, &upstream) {
				return errBadGateway(c, upstream.Error())
			}
			logging.FromContext(c.UserContext()).Error("soil lookup failed", "lon", lon, "lat", lat, "error", err)
			return errInternal(c, "soil lookup failed")
		}

		if !res.Found {
			return c.JSON(fiber.Map{"message": NoMapUnitsMessage})
		}

		rows := make([][]string, 0, len(res.Units))
		for _, u := range res.Units {
			rows = append(rows, u.Row())
		}
		return c.JSON(fiber.Map{"data": rows})
	}
}

// queryCoordinate parses a required float query parameter within [-limit, limit].
func queryCoordinate(c *fiber.Ctx, name string, limit float64) (float64, *ValidationIssue) {
	raw := c.Query(name)
	if raw == "" {
		return 0, &ValidationIssue{Loc: []string{"query", name}, Msg: "Field required", Type: "missing"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationIssue{Loc: []string{"query", name}, Msg: "Input should be a valid number", Type: "float_parsing"}
	}
	if v < -limit {
		return 0, &ValidationIssue{
			Loc:  []string{"query", name},
			Msg:  "Input should be greater than or equal to " + strconv.FormatFloat(-limit, 'f', -1, 64),
			Type: "greater_than_equal",
		}
	}
	if v > limit {
		return 0, &ValidationIssue{
			Loc:  []string{"query", name},
			Msg:  "Input should be less than or equal to " + strconv.FormatFloat(limit, 'f', -1, 64),
			Type: "less_than_equal",
		}
	}
	return v, nil
}

// clickRequest is the body of POST /v1/clicks.
type clickRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ClickResponse is returned by POST /v1/clicks.
type ClickResponse struct {
	Result  domain.ClickResult `json:"result"`
	Applied bool               `json:"applied"`
}

// PostClickHandler resolves a map click synchronously.
func PostClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req clickRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}

		result, applied := deps.Resolver.Resolve(c.UserContext(), domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
		return c.JSON(ClickResponse{Result: result, Applied: applied})
	}
}

// CurrentClickHandler returns the displayed ClickResult.
func CurrentClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cur, ok := deps.Resolver.Current()
		if !ok {
			return errNotFound(c, domain.ErrNoClick.Error())
		}
		return c.JSON(cur)
	}
}

// ClickStatus is the overlay card content.
type ClickStatus struct {
	Clicked *ClickedLocation `json:"clicked"`
	Message string           `json:"message"`
}

// ClickedLocation holds coordinates formatted to six decimals.
type ClickedLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// ClickStatusHandler returns the status overlay for the most recent click.
func ClickStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cur, ok := deps.Resolver.Current()
		if !ok {
			return c.JSON(ClickStatus{Message: StatusPrompt})
		}
		return c.JSON(ClickStatus{
			Clicked: &ClickedLocation{
				Latitude:  strconv.FormatFloat(cur.Click.Lat, 'f', 6, 64),
				Longitude: strconv.FormatFloat(cur.Click.Lng, 'f', 6, 64),
			},
			Message: "Clicked Location",
		})
	}
}

// MapConfigHandler returns the settings the map front-end renders with.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.MapConfig)
	}
}

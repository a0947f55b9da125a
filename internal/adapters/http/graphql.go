package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the resolver and soil service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	clickResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClickResult",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"generation":  &graphql.Field{Type: graphql.Int},
			"click":       &graphql.Field{Type: coordinateType},
			"source":      &graphql.Field{Type: graphql.String},
			"polygon":     &graphql.Field{Type: graphql.NewList(coordinateType)},
			"resolved_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	mapUnitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapUnit",
		Fields: graphql.Fields{
			"mupolygonkey": &graphql.Field{Type: graphql.String},
			"mukey":        &graphql.Field{Type: graphql.String},
			"wkt":          &graphql.Field{Type: graphql.String},
		},
	})

	soilType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SoilLookup",
		Fields: graphql.Fields{
			"found": &graphql.Field{Type: graphql.Boolean},
			"units": &graphql.Field{Type: graphql.NewList(mapUnitType)},
		},
	})

	clickOutcomeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClickOutcome",
		Fields: graphql.Fields{
			"result":  &graphql.Field{Type: clickResultType},
			"applied": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"currentClick": &graphql.Field{
				Type:        clickResultType,
				Description: "The displayed click result, null before the first click",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cur, ok := deps.Resolver.Current()
					if !ok {
						return nil, nil
					}
					return cur, nil
				},
			},
			"soil": &graphql.Field{
				Type:        soilType,
				Description: "Soil map units containing a point",
				Args: graphql.FieldConfigArgument{
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lon := p.Args["lon"].(float64)
					lat := p.Args["lat"].(float64)
					return deps.Soil.MapUnitsAt(p.Context, lon, lat)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"click": &graphql.Field{
				Type:        clickOutcomeType,
				Description: "Resolve a map click",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					click := domain.Coordinate{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					result, applied := deps.Resolver.Resolve(p.Context, click)
					return ClickResponse{Result: result, Applied: applied}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the customer service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	customerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Customer",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"latitude":  &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"longitude": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"contact":   &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"customers": &graphql.Field{
				Type:        graphql.NewList(customerType),
				Description: "List all customers in insertion order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Customers.List(p.Context)
				},
			},
			"customer": &graphql.Field{
				Type:        customerType,
				Description: "Get a customer by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					return deps.Customers.Get(p.Context, int64(id))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createCustomer": &graphql.Field{
				Type:        customerType,
				Description: "Add a customer; the id is assigned by the registry",
				Args: graphql.FieldConfigArgument{
					"name":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"contact":   &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Customers.Create(p.Context, fieldsFromArgs(p.Args))
				},
			},
			"updateCustomer": &graphql.Field{
				Type:        customerType,
				Description: "Replace the given fields of a customer",
				Args: graphql.FieldConfigArgument{
					"id":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"name":      &graphql.ArgumentConfig{Type: graphql.String},
					"latitude":  &graphql.ArgumentConfig{Type: graphql.Float},
					"longitude": &graphql.ArgumentConfig{Type: graphql.Float},
					"contact":   &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					return deps.Customers.Update(p.Context, int64(id), fieldsFromArgs(p.Args))
				},
			},
			"deleteCustomer": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Remove a customer; false when the id did not exist",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					return deps.Customers.Delete(p.Context, int64(id))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// fieldsFromArgs maps present GraphQL arguments onto a patch payload.
func fieldsFromArgs(args map[string]interface{}) domain.CustomerFields {
	var f domain.CustomerFields
	if v, ok := args["name"].(string); ok {
		f.Name = &v
	}
	if v, ok := args["latitude"].(float64); ok {
		f.Latitude = &v
	}
	if v, ok := args["longitude"].(float64); ok {
		f.Longitude = &v
	}
	if v, ok := args["contact"].(string); ok {
		f.Contact = &v
	}
	return f
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
		if err := c.BodyParser(&req); err != nil {
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

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"

	"profile-service/internal/apperror"
	"profile-service/internal/auth"
	"profile-service/internal/model"
	"profile-service/internal/service"
)

// GraphQLHandler exposes the read-only query surface alongside the REST
// endpoints: by-ID lookups for either kind behind a bearer token.
//
// ACCESS RULE (inverted on purpose):
// getUserById requires an ORGANISER token and getOrganiserById requires
// a USER token. The query surface exists for one principal category to
// look up the other; own-record reads go through GET /user and
// GET /organiser.
type GraphQLHandler struct {
	schema graphql.Schema
	logger *slog.Logger
}

// NewGraphQLHandler builds the schema once; resolvers close over the
// profile service.
func NewGraphQLHandler(profiles *service.ProfileService, logger *slog.Logger) (*GraphQLHandler, error) {
	userType := profileType("User", "UID")
	organiserType := profileType("Organiser", "OID")

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getUserById": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"uid": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: resolveByID(profiles, "uid", model.KindUser, model.KindOrganiser, "User"),
			},
			"getOrganiserById": &graphql.Field{
				Type: organiserType,
				Args: graphql.FieldConfigArgument{
					"oid": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: resolveByID(profiles, "oid", model.KindOrganiser, model.KindUser, "Organiser"),
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, err
	}

	return &GraphQLHandler{schema: schema, logger: logger}, nil
}

// graphqlRequest is the standard POST body shape.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// HandleQuery executes a GraphQL query.
//
// HTTP: POST /graphql (any valid token; per-field rules apply inside)
//
// Responses are always 200 with the GraphQL envelope; lookup failures
// travel in the errors array with a code extension (401/404/500), not
// in the HTTP status line.
func (h *GraphQLHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "query is required",
		})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		Context:        r.Context(),
	})

	writeJSON(w, http.StatusOK, result)
}

// queryError carries a status-like code into the GraphQL errors array
// via the extensions object.
type queryError struct {
	code    int
	message string
}

func (e *queryError) Error() string { return e.message }

func (e *queryError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

// resolveByID builds the resolver for one kind's by-key query. The
// caller must hold a token of the OTHER kind; the lookup itself reuses
// the service's cross-principal read, so hidden fields are already
// blanked before the resolver sees the record.
func resolveByID(
	profiles *service.ProfileService,
	argName string,
	lookupKind, callerKind model.ProfileKind,
	entity string,
) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		claims, ok := auth.ClaimsFromContext(p.Context)
		if !ok || claims.Profile != callerKind {
			return nil, &queryError{code: http.StatusUnauthorized, message: "Not Authorized"}
		}

		id, _ := p.Args[argName].(string)
		profile, err := profiles.GetByID(p.Context, lookupKind, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, &queryError{code: http.StatusNotFound, message: entity + " does not exist"}
			}
			return nil, &queryError{code: http.StatusInternalServerError, message: "Database not live"}
		}

		return profile, nil
	}
}

// profileType builds the object type for one kind. The two kinds share
// every field except the name of the key (UID vs OID).
func profileType(name, keyField string) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			keyField:  stringField(func(p *model.Profile) string { return p.ID }),
			"Name":    stringField(func(p *model.Profile) string { return p.Name }),
			"Email":   stringField(func(p *model.Profile) string { return p.Email }),
			"PicURL":  stringField(func(p *model.Profile) string { return p.PicURL }),
			"PhoneNo": stringField(func(p *model.Profile) string { return p.PhoneNo }),
			"Address": stringField(func(p *model.Profile) string { return p.Address }),
			"Age": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					profile, ok := p.Source.(*model.Profile)
					if !ok {
						return nil, nil
					}
					return profile.Age, nil
				},
			},
		},
	})
}

func stringField(get func(*model.Profile) string) *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewNonNull(graphql.String),
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			profile, ok := p.Source.(*model.Profile)
			if !ok {
				return nil, nil
			}
			return get(profile), nil
		},
	}
}

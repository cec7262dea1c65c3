package server

import (
	"net/http"
	"strings"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultAPIVersion = "v1"

type RouterParams struct {
	fx.In

	// Config describes the mounts and the cors policy
	Config RouterConfig

	// Handlers are the api routes
	Handlers []*HttpHandler `group:"handlers"`

	// Logger is the logger to use
	Logger *zap.Logger
}

// Router serves the api handlers at the root and below /api/{version}.
type Router struct {
	handler http.Handler
}

func NewRouter(params RouterParams) *Router {
	api := http.NewServeMux()

	for _, handler := range params.Handlers {
		api.Handle(handler.Name, handler.Handler)
	}

	version := strings.Trim(params.Config.APIVersion, "/")
	if version == "" {
		version = defaultAPIVersion
	}

	prefix := "/api/" + version

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, api))
	mux.Handle("/", api)

	log := params.Logger.Named("http")

	reporter := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
	})

	var handler http.Handler = mux
	handler = newCorsHandler(params.Config.Cors, log, handler)
	handler = reporter.Handle(handler)
	handler = recoverer(log, handler)
	handler = accessLog(log, handler)

	return &Router{handler: handler}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// recoverer answers requests whose handler panicked with 500. The
// panic has already been reported to sentry by then.
func recoverer(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			if err == http.ErrAbortHandler {
				panic(err)
			}

			log.Error("handler panicked",
				zap.Any("panic", err),
				zap.String("path", r.URL.Path),
			)

			http.Error(w, "internal server error", http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

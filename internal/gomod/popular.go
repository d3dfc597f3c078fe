package gomod

import "github.com/git-pkgs/slopguard/internal/detect"

// topModules is the curated popular-module list for the name-similarity
// detectors. The proxy exposes no download counts, so adoption ratios
// are never checked for this ecosystem.
var topModules = []detect.PopularPackage{
	{Name: "github.com/gin-gonic/gin"},
	{Name: "github.com/gorilla/mux"},
	{Name: "github.com/spf13/cobra"},
	{Name: "github.com/spf13/viper"},
	{Name: "github.com/stretchr/testify"},
	{Name: "github.com/sirupsen/logrus"},
	{Name: "github.com/pkg/errors"},
	{Name: "github.com/go-redis/redis"},
	{Name: "github.com/redis/go-redis"},
	{Name: "github.com/lib/pq"},
	{Name: "github.com/jackc/pgx"},
	{Name: "github.com/google/uuid"},
	{Name: "github.com/prometheus/client_golang"},
	{Name: "github.com/gorilla/websocket"},
	{Name: "github.com/golang-jwt/jwt"},
	{Name: "github.com/labstack/echo"},
	{Name: "github.com/gofiber/fiber"},
	{Name: "github.com/rs/zerolog"},
	{Name: "github.com/urfave/cli"},
	{Name: "github.com/hashicorp/consul"},
	{Name: "github.com/aws/aws-sdk-go"},
	{Name: "github.com/aws/aws-sdk-go-v2"},
	{Name: "gorm.io/gorm"},
	{Name: "google.golang.org/grpc"},
	{Name: "google.golang.org/protobuf"},
	{Name: "gopkg.in/yaml.v3"},
	{Name: "k8s.io/client-go"},
	{Name: "k8s.io/apimachinery"},
}

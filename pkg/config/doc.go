// Package config loads helpdesk configuration with viper.
//
// Values are resolved in order: built-in defaults, an optional YAML file, then
// HELPDESK_* environment variables. Nested keys use underscores in the
// environment:
//
//	HELPDESK_SERVER_PORT=8080
//	HELPDESK_DATABASE_URL=postgres://localhost/helpdesk?sslmode=disable
//	HELPDESK_REDIS_URL=redis://localhost:6379/0
//	HELPDESK_AUTH_JWT_SECRET=change-me
//	HELPDESK_STORAGE_TYPE=s3
//	HELPDESK_STORAGE_S3_BUCKET=helpdesk-attachments
//
// Example file:
//
//	server:
//	  port: 8080
//	auth:
//	  jwt_secret: change-me
//	storage:
//	  type: filesystem
//	  root: /var/lib/helpdesk
package config

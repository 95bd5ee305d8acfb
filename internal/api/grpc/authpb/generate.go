// Package authpb contains the generated api.Auth service stubs.
package authpb

//go:generate protoc -I ../../../.. --go_out=../../../.. --go_opt=module=github.com/dtroode/townsquare-auth --go-grpc_out=../../../.. --go-grpc_opt=module=github.com/dtroode/townsquare-auth api/auth.proto

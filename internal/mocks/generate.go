// Package mocks provides gomock implementations of the ports interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	tokens := mocks.NewMockTokenStore(ctrl)
//	tokens.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Store, transport and cache ports used by the services:
// AccountStore, Cache, EmailSender, OAuthSessionStore, TokenStore, UserDirectory, WaitlistStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/darrenapfel/theagnt-website-sub001/internal/ports AccountStore,Cache,EmailSender,OAuthSessionStore,TokenStore,UserDirectory,WaitlistStore

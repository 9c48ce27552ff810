// Package mocks provides testify mocks of the ports used by the application
// layer. Each constructor registers AssertExpectations with t.Cleanup.
package mocks

package store

import (
	"github.com/npezzotti/pr-messenger/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) Load() (map[string]types.Room, error) {
	args := m.Called()
	return args.Get(0).(map[string]types.Room), args.Error(1)
}

func (m *MockRoomStore) Save(room types.Room) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockRoomStore) Room(code string) (types.Room, bool, error) {
	args := m.Called(code)
	return args.Get(0).(types.Room), args.Bool(1), args.Error(2)
}

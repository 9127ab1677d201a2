/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package core

import (
	"errors"
	"path"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNewSystem(t *testing.T) {
	system := NewSystem()
	assert.NotNil(t, system)
	assert.Empty(t, system.engines)
}

func TestSystem_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewMockRunnable(ctrl)
	r.EXPECT().Start()

	system := NewSystem()
	system.RegisterEngine(&TestEngine{})
	system.RegisterEngine(r)

	assert.NoError(t, system.Start())
}

func TestSystem_Shutdown(t *testing.T) {
	t.Run("reverse order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		first := NewMockRunnable(ctrl)
		second := NewMockRunnable(ctrl)
		gomock.InOrder(
			second.EXPECT().Shutdown(),
			first.EXPECT().Shutdown(),
		)
		system := NewSystem()
		system.RegisterEngine(first)
		system.RegisterEngine(second)

		assert.NoError(t, system.Shutdown())
	})
	t.Run("continues after failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := NewMockRunnable(ctrl)
		r.EXPECT().Shutdown()
		system := NewSystem()
		system.RegisterEngine(r)
		system.RegisterEngine(&TestEngine{ShutdownError: true})

		err := system.Shutdown()

		assert.EqualError(t, err, "unable to shut down testengine: failure")
	})
}

func TestSystem_Configure(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := NewMockConfigurable(ctrl)
		r.EXPECT().Configure(gomock.Any())

		system := NewSystem()
		system.Config = NewServerConfig()
		system.Config.Datadir = path.Join(t.TempDir(), "data")
		system.RegisterEngine(&TestEngine{})
		system.RegisterEngine(r)

		assert.NoError(t, system.Configure())
		assert.DirExists(t, system.Config.Datadir)
	})
	t.Run("error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		r := NewMockConfigurable(ctrl)
		r.EXPECT().Configure(gomock.Any()).Return(errors.New("failed"))

		system := NewSystem()
		system.Config.Datadir = t.TempDir()
		system.RegisterEngine(r)

		assert.ErrorContains(t, system.Configure(), "failed")
	})
}

func TestSystem_Load(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(testFlagSet())
	t.Setenv("ISSUER_TESTENGINE_KEY", "value")
	t.Setenv("ISSUER_TESTENGINE_SUB_TEST", "sub")

	e := &TestEngine{}
	system := NewSystem()
	system.RegisterEngine(e)

	err := system.Load(cmd)

	require.NoError(t, err)
	assert.Equal(t, "value", e.TestConfig.Key)
	assert.Equal(t, "sub", e.TestConfig.Sub.Test)
	assert.Equal(t, []string{"default", "default"}, e.TestConfig.List)
}

func TestSystem_VisitEnginesE(t *testing.T) {
	system := NewSystem()
	system.RegisterEngine(&TestEngine{})
	system.RegisterEngine(&TestEngine{})
	expected := errors.New("stop")
	calls := 0

	err := system.VisitEnginesE(func(engine Engine) error {
		calls++
		return expected
	})

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 1, calls)
}

func TestSystem_FindEngineByName(t *testing.T) {
	system := NewSystem()
	engine := &TestEngine{}
	system.RegisterEngine(struct{}{})
	system.RegisterEngine(engine)

	assert.Same(t, engine, system.FindEngineByName(testEngineName))
	assert.Nil(t, system.FindEngineByName("other"))
}

func TestSystem_RegisterRoutes(t *testing.T) {
	system := NewSystem()
	system.RegisterRoutes(&TestRoutable{})

	assert.Len(t, system.Routers, 1)
}

type TestRoutable struct{}

func (t TestRoutable) Routes(_ EchoRouter) {}

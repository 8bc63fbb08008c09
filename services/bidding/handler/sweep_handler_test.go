package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-engine/internal/biddingerrors"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestTriggerSweepHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mockSetup      func(m *MockSweeperInterface)
		expectedStatus int
		expectedCount  float64
	}{
		{
			name: "closes_due_auctions",
			mockSetup: func(m *MockSweeperInterface) {
				m.EXPECT().Sweep(gomock.Any(), now).Return([]string{"a1", "a2"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name: "nothing_due",
			mockSetup: func(m *MockSweeperInterface) {
				m.EXPECT().Sweep(gomock.Any(), now).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "partial_failure",
			mockSetup: func(m *MockSweeperInterface) {
				m.EXPECT().Sweep(gomock.Any(), now).
					Return([]string{"a1"}, errors.Join(fmt.Errorf("sweeper: close auction a2: %w", biddingerrors.ErrStorage)))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockSweeper := NewMockSweeperInterface(ctrl)
			tc.mockSetup(mockSweeper)

			h := NewSweepHandler(mockSweeper)
			h.now = func() time.Time { return now }
			router := gin.New()
			router.POST("/admin/sweep", h.TriggerSweepHandler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/sweep", nil))

			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				data := decodeEnvelope(t, w)["data"].(map[string]any)
				require.Equal(t, tc.expectedCount, data["count"])
				require.NotNil(t, data["closed"])
			}
		})
	}
}

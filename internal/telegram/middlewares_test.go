package telegram_test

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	tb "gopkg.in/telebot.v3"

	"github.com/Roma7-7-7/price-notifier/internal/telegram"
	"github.com/Roma7-7-7/price-notifier/internal/telegram/mocks"
)

func handlerStub(err error) tb.HandlerFunc {
	return func(_ tb.Context) error {
		return err
	}
}

func TestPurgeOnForbiddenMiddleware_Handle(t *testing.T) {
	blocked := fmt.Errorf("wrapped: %w", tb.ErrBlockedByUser)

	type fields struct {
		subscriptions func(*gomock.Controller) telegram.Subscriptions
	}
	type args struct {
		ctx func(*gomock.Controller) tb.Context
		err error
	}
	tests := []struct {
		name    string
		fields  fields
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "no_error",
			fields: fields{
				subscriptions: mockSubscriptions,
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return mocks.NewMockTelebotContext(ctrl)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "other_error",
			fields: fields{
				subscriptions: mockSubscriptions,
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return mocks.NewMockTelebotContext(ctrl)
				},
				err: assert.AnError,
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, assert.AnError)
			},
		},
		{
			name: "blocked",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(gomock.Any(), chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					ctx := mocks.NewMockTelebotContext(ctrl)
					ctx.EXPECT().Chat().Return(defaultChat)
					return ctx
				},
				err: blocked,
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, tb.ErrBlockedByUser)
			},
		},
		{
			name: "deactivated",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(gomock.Any(), chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					ctx := mocks.NewMockTelebotContext(ctrl)
					ctx.EXPECT().Chat().Return(defaultChat)
					return ctx
				},
				err: tb.ErrUserIsDeactivated,
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, tb.ErrUserIsDeactivated)
			},
		},
		{
			name: "purge_failed",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(gomock.Any(), chatID).Return(false, assert.AnError)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					ctx := mocks.NewMockTelebotContext(ctrl)
					ctx.EXPECT().Chat().Return(defaultChat)
					return ctx
				},
				err: blocked,
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, tb.ErrBlockedByUser)
			},
		},
		{
			name: "missing_chat_id",
			fields: fields{
				subscriptions: mockSubscriptions,
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					ctx := mocks.NewMockTelebotContext(ctrl)
					ctx.EXPECT().Chat().Return(nil)
					ctx.EXPECT().Sender().Return(nil)
					return ctx
				},
				err: blocked,
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, tb.ErrBlockedByUser)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			m := telegram.NewPurgeOnForbiddenMiddleware(
				tt.fields.subscriptions(ctrl),
				slog.New(slog.DiscardHandler),
			)
			tt.wantErr(t, m.Handle(handlerStub(tt.args.err))(tt.args.ctx(ctrl)))
		})
	}
}

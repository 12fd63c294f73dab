package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"vpn-console/console/internal/backend"
	"vpn-console/console/internal/session"
)

var validate = validator.New()

// validateInput checks caller-side presence rules before a gateway call.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

type credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

func NewLoginCommand(rt *Runtime) *cobra.Command {
	var creds credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = os.Getenv("VPNCONSOLE_PASSWORD")
			}
			if err := validateInput(creds); err != nil {
				return err
			}
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()

			id, err := rt.App.Session.Login(ctx, creds.Username, creds.Password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s); home: %s\n", id.Username, id.Role, session.Home(id))
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Username, "username", "", "account username")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (or VPNCONSOLE_PASSWORD)")
	return cmd
}

func NewLogoutCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.App.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

type whoami struct {
	Status   string            `json:"status" yaml:"status"`
	Identity *backend.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
	Admin    bool              `json:"admin" yaml:"admin"`
}

func NewWhoamiCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved session identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := rt.App.Session
			out := whoami{Status: st.Status().String(), Admin: st.IsAdmin()}
			if id, ok := st.Identity(); ok {
				out.Identity = &id
			}
			return render(cmd.OutOrStdout(), rt.App.Format, out, func(w io.Writer) {
				if out.Identity == nil {
					row(w, "Status:", out.Status)
					return
				}
				row(w, "Username:", out.Identity.Username)
				row(w, "Role:", out.Identity.Role)
				row(w, "Name:", orDash(out.Identity.CommonName))
				row(w, "Mail:", orDash(out.Identity.Mail))
				row(w, "Home:", session.Home(*out.Identity))
			})
		},
	}
}

func NewHealthCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.App.Call(cmd.Context())
			defer cancel()
			ack, err := rt.App.Client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rt.App.Config.APIURL, ack.Status)
			return nil
		},
	}
}

package provider

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	aws_session "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/roles"
)

const (
	DirectProviderName = "bastion"

	// UserRolesPath holds the JSON list of role names a user may assume.
	UserRolesPath = "/figgy/users/%s/roles"
	// AccountsPath holds one parameter per env whose value is the account id.
	AccountsPath = "/figgy/accounts"
)

type DirectOptions struct {
	// User is the operator's IAM user; looked up with iam:GetUser when empty.
	User            string
	Profile         string
	Region          string
	MFAEnabled      bool
	SessionDuration time.Duration
	RolePrefix      string
	MaxAuthAttempts int
}

// updates direct provider options with package provided defaults.
func (o *DirectOptions) ApplyDefaults() {
	if o.SessionDuration == 0 {
		o.SessionDuration = DefaultSessionDuration
	}
	if o.RolePrefix == "" {
		o.RolePrefix = roles.RolePrefix()
	}
	if o.MaxAuthAttempts == 0 {
		o.MaxAuthAttempts = MaxAuthAttempts
	}
}

// validates direct provider options.
func (o *DirectOptions) Validate() error {
	if o.SessionDuration < MinSessionDuration || o.SessionDuration > MaxSessionDuration {
		return fmt.Errorf("session duration must be between %s and %s: %w", MinSessionDuration, MaxSessionDuration, ErrConfig)
	}
	return nil
}

// AWSClients are the clients the direct provider calls with the operator's
// own credentials.
type AWSClients struct {
	STS stsiface.STSAPI
	IAM iamiface.IAMAPI
	SSM ssmiface.SSMAPI
}

// ClientsFromProfile builds AWSClients from a local shared config profile.
func ClientsFromProfile(profile, region string) (AWSClients, error) {
	awsSession, err := aws_session.NewSessionWithOptions(aws_session.Options{
		Profile:           profile,
		SharedConfigState: aws_session.SharedConfigEnable,
		Config:            aws.Config{Region: aws.String(region)},
	})
	if err != nil {
		return AWSClients{}, xerrors.Errorf("loading profile %s: %w", profile, err)
	}
	return AWSClients{
		STS: sts.New(awsSession),
		IAM: iam.New(awsSession),
		SSM: ssm.New(awsSession),
	}, nil
}

// Direct assumes roles with sts:AssumeRole from the operator's own long
// lived credentials, optionally with MFA.
type Direct struct {
	sessions
	opts     DirectOptions
	clients  AWSClients
	prompter Prompter

	mu        sync.Mutex
	user      string
	mfaSerial string
}

func NewDirect(cache CredentialCache, validator CredentialValidator, clients AWSClients, prompter Prompter, opts DirectOptions) (*Direct, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Direct{
		sessions: sessions{
			cache:       cache,
			validator:   validator,
			region:      opts.Region,
			maxAttempts: opts.MaxAuthAttempts,
		},
		opts:     opts,
		clients:  clients,
		prompter: prompter,
		user:     opts.User,
	}, nil
}

func (d *Direct) Name() string {
	return DirectProviderName
}

func (d *Direct) GetSession(ctx aws.Context, role roles.AssumableRole, prompt bool) (*Session, error) {
	return d.get(ctx, role, prompt, d.authenticate)
}

func (d *Direct) CleanupSessionCache() error {
	return d.cache.Wipe()
}

func (d *Direct) operator(ctx aws.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.user != "" {
		return d.user, nil
	}

	out, err := d.clients.IAM.GetUserWithContext(ctx, &iam.GetUserInput{})
	if err != nil {
		return "", d.classify("iam:GetUser", err)
	}
	d.user = aws.StringValue(out.User.UserName)
	log.Debugf("resolved operator %s from iam", d.user)
	return d.user, nil
}

// mfaSerialNumber returns the operator's first MFA device, looked up once.
func (d *Direct) mfaSerialNumber(ctx aws.Context, user string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mfaSerial != "" {
		return d.mfaSerial, nil
	}

	out, err := d.clients.IAM.ListMFADevicesWithContext(ctx, &iam.ListMFADevicesInput{UserName: aws.String(user)})
	if err != nil {
		return "", d.classify("iam:ListMFADevices", err)
	}
	if len(out.MFADevices) == 0 {
		return "", xerrors.Errorf("mfa is enabled but user %s has no MFA device: %w", user, ErrConfig)
	}
	d.mfaSerial = aws.StringValue(out.MFADevices[0].SerialNumber)
	log.Debugf("using MFA device %s", d.mfaSerial)
	return d.mfaSerial, nil
}

func (d *Direct) authenticate(ctx aws.Context, role roles.AssumableRole, forcePrompt bool) (*sessioncache.Credential, error) {
	user, err := d.operator(ctx)
	if err != nil {
		return nil, err
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(role.RoleARN()),
		RoleSessionName: aws.String(user),
		DurationSeconds: durationSeconds(d.opts.SessionDuration),
	}
	if d.opts.MFAEnabled {
		serial, err := d.mfaSerialNumber(ctx, user)
		if err != nil {
			return nil, err
		}
		code, err := d.prompter.MFACode(ctx)
		if err != nil {
			return nil, err
		}
		input.SerialNumber = aws.String(serial)
		input.TokenCode = aws.String(code)
	}

	log.WithField("role", role.RoleARN()).Debug("assuming role")
	out, err := d.clients.STS.AssumeRoleWithContext(ctx, input)
	if err != nil {
		return nil, d.classify(role.RoleARN(), err)
	}
	cred := sessioncache.FromSTS(out.Credentials)
	return &cred, nil
}

// classify marks explicit denials and invalid requests terminal.
func (d *Direct) classify(role string, err error) error {
	switch code := awsErrorCode(err); {
	case code == "AccessDenied" || code == "AccessDeniedException":
		return &AccessDeniedError{Role: role, Profile: d.opts.Profile, Err: err}
	case code == request.InvalidParameterErrCode || strings.HasPrefix(code, "InvalidParameter") ||
		code == request.ParamRequiredErrCode || code == "ValidationError":
		return xerrors.Errorf("invalid parameters for %s: %v: %w", role, err, ErrConfig)
	}
	return xerrors.Errorf("%s: %w", role, err)
}

// GetAssumableRoles joins the operator's authorized roles with every env
// registered in the parameter store.
func (d *Direct) GetAssumableRoles(ctx aws.Context) (roles.Catalog, error) {
	user, err := d.operator(ctx)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf(UserRolesPath, user)
	out, err := d.clients.SSM.GetParameterWithContext(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if awsErrorCode(err) == ssm.ErrCodeParameterNotFound {
		return nil, xerrors.Errorf("%s: %w", name, roles.ErrNoAuthorizedRoles)
	} else if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", name, err)
	}

	var authorized []string
	if err := json.Unmarshal([]byte(aws.StringValue(out.Parameter.Value)), &authorized); err != nil {
		return nil, xerrors.Errorf("%s is not a JSON list of role names: %v: %w", name, err, ErrConfig)
	}

	accounts := map[string]string{}
	err = d.clients.SSM.GetParametersByPathPagesWithContext(ctx, &ssm.GetParametersByPathInput{
		Path:      aws.String(AccountsPath),
		Recursive: aws.Bool(false),
	}, func(page *ssm.GetParametersByPathOutput, lastPage bool) bool {
		for _, p := range page.Parameters {
			accounts[path.Base(aws.StringValue(p.Name))] = aws.StringValue(p.Value)
		}
		return true
	})
	if err != nil {
		return nil, xerrors.Errorf("listing %s: %w", AccountsPath, err)
	}
	if len(accounts) == 0 {
		return nil, xerrors.Errorf("no environments registered under %s: %w", AccountsPath, ErrConfig)
	}

	return roles.FromDirectory(authorized, accounts, d.opts.RolePrefix)
}

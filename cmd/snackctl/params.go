package main

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var paramPrefix string

// SSMAPI is the slice of the SSM API snackctl reads stack names from.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

var _ SSMAPI = (*ssm.Client)(nil)

func newSSMClient(ctx context.Context) (*ssm.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

// resolveName picks a resource name: an explicit flag or environment
// value wins, then the stack's SSM parameter <prefix>/<leaf>.
func resolveName(ctx context.Context, explicit, leaf string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if paramPrefix == "" {
		return "", fmt.Errorf("%s not set: pass the flag, set the environment or use --param-prefix", leaf)
	}
	api, err := newSSMClient(ctx)
	if err != nil {
		return "", err
	}
	return paramValue(ctx, api, path.Join(paramPrefix, leaf))
}

func paramValue(ctx context.Context, api SSMAPI, name string) (string, error) {
	out, err := api.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("read parameter %s: %w", name, err)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// queueURLs lists the stack's queues: one parameter per queue under
// <prefix>/queues/, named after the queue.
func queueURLs(ctx context.Context, api SSMAPI) (map[string]string, error) {
	if paramPrefix == "" {
		return nil, fmt.Errorf("--param-prefix required to discover queues")
	}
	base := path.Join(paramPrefix, "queues")
	urls := map[string]string{}
	var next *string
	for {
		out, err := api.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:      aws.String(base),
			NextToken: next,
		})
		if err != nil {
			return nil, fmt.Errorf("list parameters under %s: %w", base, err)
		}
		for _, p := range out.Parameters {
			urls[path.Base(aws.ToString(p.Name))] = aws.ToString(p.Value)
		}
		if out.NextToken == nil {
			return urls, nil
		}
		next = out.NextToken
	}
}
